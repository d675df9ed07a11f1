package agent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/agentfabric/core/capability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAgent(t *testing.T, impl ProcessFunc) *Agent {
	t.Helper()
	a := New("agent-1", "worker", impl)
	require.NoError(t, a.Initialize(context.Background()))
	return a
}

func TestAgent_InitializeIsIdempotent(t *testing.T) {
	a := New("agent-1", "worker", nil)
	ctx := context.Background()
	require.NoError(t, a.Initialize(ctx))
	require.NoError(t, a.Initialize(ctx))
	assert.Equal(t, StatusIdle, a.Status())
}

func TestAgent_ProcessMessage_RejectsBeforeInitialize(t *testing.T) {
	a := New("agent-1", "worker", nil)
	msg, err := NewMessage("s1", "agent-1", "hi")
	require.NoError(t, err)

	_, err = a.ProcessMessage(context.Background(), msg)
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestAgent_ProcessMessage_SuccessTransitionsBackToIdle(t *testing.T) {
	a := newTestAgent(t, func(_ context.Context, msg *Message) (any, error) {
		return "processed:" + msg.Content.(string), nil
	})
	msg, err := NewMessage("s1", "agent-1", "payload")
	require.NoError(t, err)

	result, err := a.ProcessMessage(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, "processed:payload", result)
	assert.Equal(t, StatusIdle, a.Status())

	hist := a.History()
	require.Len(t, hist, 1)
	assert.Equal(t, msg.ID, hist[0].Message.ID)
	assert.NoError(t, hist[0].Err)
}

func TestAgent_ProcessMessage_FailurePutsAgentInErrorStatus(t *testing.T) {
	boom := errors.New("boom")
	a := newTestAgent(t, func(_ context.Context, _ *Message) (any, error) {
		return nil, boom
	})
	msg, err := NewMessage("s1", "agent-1", "payload")
	require.NoError(t, err)

	_, err = a.ProcessMessage(context.Background(), msg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProcessingFailed)
	assert.Equal(t, StatusError, a.Status())
}

func TestAgent_ProcessMessage_SimulatedFailureHook(t *testing.T) {
	a := newTestAgent(t, func(_ context.Context, _ *Message) (any, error) {
		t.Fatal("process implementation should not run on simulated failure")
		return nil, nil
	})
	msg, err := NewMessage("s1", "agent-1", map[string]any{"should_fail": true})
	require.NoError(t, err)

	_, err = a.ProcessMessage(context.Background(), msg)
	assert.ErrorIs(t, err, ErrSimulatedFailure)
	assert.Equal(t, StatusError, a.Status())
}

func TestAgent_HistoryIsBounded(t *testing.T) {
	a := New("agent-1", "worker", nil, WithMaxHistory(2))
	require.NoError(t, a.Initialize(context.Background()))

	for i := 0; i < 5; i++ {
		msg, err := NewMessage("s1", "agent-1", i)
		require.NoError(t, err)
		_, err = a.ProcessMessage(context.Background(), msg)
		require.NoError(t, err)
	}

	hist := a.History()
	assert.Len(t, hist, 2)
	assert.Equal(t, 3, hist[0].Message.Content)
	assert.Equal(t, 4, hist[1].Message.Content)
}

func TestAgent_AddRemoveCapability(t *testing.T) {
	a := newTestAgent(t, nil)
	c := capability.New(capability.KindMonitoring)

	require.NoError(t, a.AddCapability(c))
	assert.True(t, a.HasCapability(capability.KindMonitoring))

	require.NoError(t, a.RemoveCapability(c))
	assert.False(t, a.HasCapability(capability.KindMonitoring))
}

func TestAgent_GetStatus(t *testing.T) {
	a := newTestAgent(t, nil)
	require.NoError(t, a.AddCapability(capability.New(capability.KindStorage)))

	msg, err := NewMessage("s1", "agent-1", "hi")
	require.NoError(t, err)
	_, err = a.ProcessMessage(context.Background(), msg)
	require.NoError(t, err)

	report := a.GetStatus()
	assert.Equal(t, StatusIdle, report.Status)
	assert.Len(t, report.Capabilities, 1)
	assert.Equal(t, 1, report.MessageCount)
	require.NotNil(t, report.LastMessageTime)
}

func TestAgent_Shutdown(t *testing.T) {
	a := newTestAgent(t, nil)
	msg, err := NewMessage("s1", "agent-1", "hi")
	require.NoError(t, err)
	_, err = a.ProcessMessage(context.Background(), msg)
	require.NoError(t, err)

	require.NoError(t, a.Shutdown(context.Background()))
	assert.Equal(t, StatusOffline, a.Status())
	assert.Empty(t, a.History())
}

func TestAgent_RegistrationIndexSetOnce(t *testing.T) {
	a := newTestAgent(t, nil)
	_, ok := a.RegistrationIndex()
	assert.False(t, ok)

	a.SetRegistrationIndex(7)
	idx, ok := a.RegistrationIndex()
	assert.True(t, ok)
	assert.Equal(t, uint64(7), idx)

	a.SetRegistrationIndex(99)
	idx, _ = a.RegistrationIndex()
	assert.Equal(t, uint64(7), idx, "registration index must not be reassigned")
}

// fakeKnowledgeGraph records triple mutations for the idempotent-status
// reflection contract.
type fakeKnowledgeGraph struct {
	mu      sync.Mutex
	triples map[string]string // subject+predicate -> object
	removed int
}

func newFakeKG() *fakeKnowledgeGraph {
	return &fakeKnowledgeGraph{triples: make(map[string]string)}
}

func (f *fakeKnowledgeGraph) Initialize(context.Context) error { return nil }
func (f *fakeKnowledgeGraph) Cleanup(context.Context) error    { return nil }

func (f *fakeKnowledgeGraph) AddTriple(_ context.Context, subject, predicate, object string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triples[subject+predicate] = object
	return nil
}

func (f *fakeKnowledgeGraph) RemoveTriple(_ context.Context, subject, predicate string, _ *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.triples[subject+predicate]; ok {
		delete(f.triples, subject+predicate)
		f.removed++
	}
	return nil
}

func (f *fakeKnowledgeGraph) QueryGraph(context.Context, string) (any, error) { return nil, nil }
func (f *fakeKnowledgeGraph) UpdateGraph(context.Context, map[string]any) error { return nil }

func TestAgent_UpdateStatusReflectsIdempotentlyIntoKnowledgeGraph(t *testing.T) {
	kg := newFakeKG()
	a := New("agent-1", "worker", nil, WithKnowledgeGraph(kg))
	require.NoError(t, a.Initialize(context.Background()))

	require.NoError(t, a.UpdateStatus(context.Background(), StatusActive))
	require.NoError(t, a.UpdateStatus(context.Background(), StatusBusy))

	kg.mu.Lock()
	defer kg.mu.Unlock()
	assert.Equal(t, "busy", kg.triples["agent-1hasStatus"])
	assert.Equal(t, 1, kg.removed, "prior status triple should be cleared before the new one is set")
}

func TestAgent_DiaryOptionalTracking(t *testing.T) {
	withoutDiary := New("agent-1", "worker", nil)
	withoutDiary.AppendDiary("ignored")
	assert.Nil(t, withoutDiary.Diary())

	withDiary := New("agent-2", "worker", nil, WithDiary())
	withDiary.AppendDiary("first entry")
	withDiary.AppendDiary("second entry")
	assert.Equal(t, []string{"first entry", "second entry"}, withDiary.Diary())
}

func TestAgent_ConcurrentProcessMessageIsSerialized(t *testing.T) {
	var active int32
	var mu sync.Mutex
	maxObserved := 0

	a := newTestAgent(t, func(_ context.Context, _ *Message) (any, error) {
		mu.Lock()
		active++
		if int(active) > maxObserved {
			maxObserved = int(active)
		}
		mu.Unlock()

		time.Sleep(2 * time.Millisecond)

		mu.Lock()
		active--
		mu.Unlock()
		return nil, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			msg, err := NewMessage("s1", "agent-1", i)
			require.NoError(t, err)
			_, _ = a.ProcessMessage(context.Background(), msg)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, maxObserved, "agent lock must serialize message processing")
}
