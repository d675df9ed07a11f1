package workflow

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func setupRedisStore(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, NewRedisStore(client, "fabric:test:workflow", nil)
}

func TestRedisStore_SaveAndGetWorkflow(t *testing.T) {
	mr, store := setupRedisStore(t)
	defer mr.Close()

	w := &Workflow{ID: "wf-1", Name: "first", Status: StatusPending, CreatedAt: time.Now()}
	require.NoError(t, store.SaveWorkflow(w))

	got, ok, err := store.GetWorkflow("wf-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "first", got.Name)
	require.Equal(t, StatusPending, got.Status)
}

func TestRedisStore_GetWorkflow_UnknownIDReturnsNotFound(t *testing.T) {
	mr, store := setupRedisStore(t)
	defer mr.Close()

	_, ok, err := store.GetWorkflow("missing")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisStore_GetWorkflowHistory_OrdersByVersion(t *testing.T) {
	mr, store := setupRedisStore(t)
	defer mr.Close()

	w := &Workflow{ID: "wf-2", Name: "v"}
	for v := 1; v <= 3; v++ {
		w.Version = v
		w.Status = Status("step-" + string(rune('0'+v)))
		require.NoError(t, store.SaveWorkflow(w))
	}

	history, err := store.GetWorkflowHistory("wf-2")
	require.NoError(t, err)
	require.Len(t, history, 3)
	for i, snap := range history {
		require.Equal(t, i+1, snap.Version)
	}
}

func TestRedisStore_LatestPointerTracksMostRecentSave(t *testing.T) {
	mr, store := setupRedisStore(t)
	defer mr.Close()

	w := &Workflow{ID: "wf-3", Version: 1, Name: "old"}
	require.NoError(t, store.SaveWorkflow(w))

	w.Version = 2
	w.Name = "new"
	require.NoError(t, store.SaveWorkflow(w))

	got, ok, err := store.GetWorkflow("wf-3")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "new", got.Name)
}
