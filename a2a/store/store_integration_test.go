//go:build integration
// +build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/JailtonJunior94/fabric/a2a"
	"github.com/JailtonJunior94/fabric/a2a/store"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupStore mirrors the teacher's uow_integration_test.go: a real
// PostgreSQL container via testcontainers, so the upsert/transaction
// behavior is exercised against actual MVCC semantics rather than a mock.
func setupStore(t *testing.T) *store.Store {
	ctx := context.Background()

	pgContainer, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		postgres.WithDatabase("fabric"),
		postgres.WithUsername("fabric"),
		postgres.WithPassword("fabric"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgContainer.Terminate(ctx) })

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := store.Open(ctx, store.DefaultConfig(dsn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

	return s
}

func TestIntegration_Store_SaveAndGet(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	task := a2a.Task{TaskID: "t1", ContextID: "ctx1", Skill: "echo", State: a2a.StateSubmitted, LatestMessage: []byte(`{"x":1}`)}
	require.NoError(t, s.SaveTask(ctx, task))

	got, err := s.Get(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, task.TaskID, got.TaskID)
	require.Equal(t, task.Skill, got.Skill)
	require.Equal(t, a2a.StateSubmitted, got.State)
}

func TestIntegration_Store_SaveTaskUpsertsOnConflict(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	task := a2a.Task{TaskID: "t2", Skill: "echo", State: a2a.StateSubmitted}
	require.NoError(t, s.SaveTask(ctx, task))

	task.State = a2a.StateWorking
	require.NoError(t, s.SaveTask(ctx, task))

	got, err := s.Get(ctx, "t2")
	require.NoError(t, err)
	require.Equal(t, a2a.StateWorking, got.State)
}

func TestIntegration_Store_GetMissingReturnsErrNotFound(t *testing.T) {
	s := setupStore(t)
	_, err := s.Get(context.Background(), "does-not-exist")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestIntegration_Store_CompleteTaskCommitsStateAndEvent(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	task := a2a.Task{TaskID: "t3", Skill: "echo", State: a2a.StateWorking}
	require.NoError(t, s.SaveTask(ctx, task))
	require.NoError(t, s.CompleteTask(ctx, "t3", a2a.StateCompleted, "task.completed", []byte(`{"ok":true}`)))

	got, err := s.Get(ctx, "t3")
	require.NoError(t, err)
	require.Equal(t, a2a.StateCompleted, got.State)
}

func TestIntegration_Store_ListIncompleteExcludesTerminalStates(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveTask(ctx, a2a.Task{TaskID: "t4", Skill: "echo", State: a2a.StateWorking}))
	require.NoError(t, s.SaveTask(ctx, a2a.Task{TaskID: "t5", Skill: "echo", State: a2a.StateCompleted}))

	incomplete, err := s.ListIncomplete(ctx)
	require.NoError(t, err)

	var ids []string
	for _, task := range incomplete {
		ids = append(ids, task.TaskID)
	}
	require.Contains(t, ids, "t4")
	require.NotContains(t, ids, "t5")
}

func TestIntegration_Store_CompleteTaskContextCancelledBeforeBegin(t *testing.T) {
	s := setupStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.CompleteTask(ctx, "t6", a2a.StateFailed, "task.failed", nil)
	require.Error(t, err)
}
