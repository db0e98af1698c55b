package service_test

import (
	"context"
	"testing"
	"time"

	"scriptslap-server/models"
	"scriptslap-server/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func nextEvent(t *testing.T, events <-chan service.Event) service.Event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
		return service.Event{}
	}
}

func TestWatcher_StreamsChanges(t *testing.T) {
	e := newEnv(t)
	e.store.PutScript(models.GeneratedScript{ID: "s1", UserID: userID, GenerationStatus: models.ScriptStatusGeneratingScript})
	w := service.NewWatcher(e.store, 5*time.Millisecond, zap.NewNop())

	script, err := w.Authorize(context.Background(), principal(userID), "s1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := make(chan service.Event, 16)
	done := make(chan error, 1)
	go func() {
		done <- w.Watch(ctx, script, func(ev service.Event) error {
			events <- ev
			return nil
		})
	}()

	ev := nextEvent(t, events)
	assert.Equal(t, service.EventScript, ev.Type)
	assert.Equal(t, "Generating Script...", ev.Script.StatusLabel)

	require.NoError(t, e.store.CompleteScript(context.Background(), "s1", sampleBody))
	ev = nextEvent(t, events)
	assert.Equal(t, service.EventScript, ev.Type)
	assert.Equal(t, models.ScriptStatusComplete, ev.Script.Script.GenerationStatus)
	assert.Equal(t, "Old hook", ev.Script.Hook)

	require.NoError(t, e.store.CreateRefinement(context.Background(), &models.ScriptRefinement{ID: "r1", ScriptID: "s1", UserID: userID, Status: models.RefinementStatusPending}))
	ev = nextEvent(t, events)
	assert.Equal(t, service.EventRefinement, ev.Type)
	assert.Equal(t, "r1", ev.Refinement.ID)

	require.NoError(t, e.store.DeleteScript(context.Background(), "s1"))
	ev = nextEvent(t, events)
	assert.Equal(t, service.EventDeleted, ev.Type)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not return after delete")
	}
}

func TestWatcher_StopsOnCancel(t *testing.T) {
	e := newEnv(t)
	e.completeScript("s1", userID)
	w := service.NewWatcher(e.store, 5*time.Millisecond, zap.NewNop())

	_, err := w.Authorize(context.Background(), principal(otherID), "s1")
	assert.ErrorIs(t, err, models.ErrNotFound)

	script, err := w.Authorize(context.Background(), principal(userID), "s1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.Watch(ctx, script, func(service.Event) error { return nil })
	}()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}
