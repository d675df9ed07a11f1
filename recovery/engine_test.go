package recovery

import (
	"context"
	"testing"
	"time"

	"github.com/agentfabric/core/agent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInitializedAgent(t *testing.T) *agent.Agent {
	t.Helper()
	a := agent.New("agent-1", "worker", nil)
	require.NoError(t, a.Initialize(context.Background()))
	return a
}

func TestEngine_GetStrategy_SelectsByErrorKind(t *testing.T) {
	e := NewEngine(nil)

	cases := []struct {
		kind ErrorKind
		want string
	}{
		{ErrorKindTimeout, "timeout"},
		{ErrorKindResourceExhaustion, "resource_exhaustion"},
		{ErrorKindCommunication, "communication"},
		{ErrorKindStateCorruption, "state_corruption"},
		{ErrorKindUnknown, "default"},
		{ErrorKind("something_never_seen"), "default"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, e.GetStrategy(tc.kind).Name())
	}
}

func TestEngine_Recover_SuccessLeavesAgentIdle(t *testing.T) {
	e := NewEngine(nil)
	a := newInitializedAgent(t)
	require.NoError(t, a.UpdateStatus(context.Background(), agent.StatusError))

	ok := e.Recover(context.Background(), a, ErrorKindTimeout)
	assert.True(t, ok)
	assert.Equal(t, agent.StatusIdle, a.Status())
}

func TestEngine_Recover_CancelledContextFails(t *testing.T) {
	e := NewEngine(nil)
	a := newInitializedAgent(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok := e.Recover(ctx, a, ErrorKindCommunication)
	assert.False(t, ok)
	assert.Equal(t, agent.StatusError, a.Status())
}

func TestEngine_Recover_DeadlineExceededFails(t *testing.T) {
	e := NewEngine(nil)
	a := newInitializedAgent(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	ok := e.Recover(ctx, a, ErrorKindStateCorruption)
	assert.False(t, ok)
	assert.Equal(t, agent.StatusError, a.Status())
}

func TestEngine_NeverRaises(t *testing.T) {
	e := NewEngine(nil)
	a := newInitializedAgent(t)

	assert.NotPanics(t, func() {
		e.Recover(context.Background(), a, ErrorKind("anything"))
	})
}
