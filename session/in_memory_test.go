package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailops/boardflow/core"
)

func TestSaveAndGet(t *testing.T) {
	store := NewInMemoryStore()
	sess := core.NewSession("kpi_review", "", []string{"CFO", "Evaluator"})

	require.NoError(t, store.Save(sess))

	got, err := store.Get(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
	assert.Equal(t, "kpi_review", got.FlowID)
	assert.Len(t, got.Nodes, 2)
}

func TestGetReturnsClone(t *testing.T) {
	store := NewInMemoryStore()
	sess := core.NewSession("scenario", "", []string{"CFO", "Evaluator"})
	require.NoError(t, store.Save(sess))

	clone, err := store.Get(sess.ID)
	require.NoError(t, err)
	clone.Nodes["CFO"].Status = core.NodeCompleted

	fresh, err := store.Get(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, core.NodePending, fresh.Nodes["CFO"].Status, "mutating a read must not touch stored state")
}

func TestGetTracksLiveSession(t *testing.T) {
	store := NewInMemoryStore()
	sess := core.NewSession("scenario", "", []string{"CFO", "Evaluator"})
	require.NoError(t, store.Save(sess))

	sess.MarkNodeActive("CFO")

	got, err := store.Get(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, core.NodeActive, got.Nodes["CFO"].Status)
}

func TestGetUnknown(t *testing.T) {
	store := NewInMemoryStore()

	_, err := store.Get("missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestEventsVisibleThroughStore(t *testing.T) {
	store := NewInMemoryStore()
	sess := core.NewSession("trade_off", "", []string{"CFO", "CMO", "Evaluator"})
	require.NoError(t, store.Save(sess))

	ev := core.NewEvent(sess.ID, core.EventSessionStart, nil)
	sess.AddEvent(ev)

	got, err := store.Get(sess.ID)
	require.NoError(t, err)
	require.Len(t, got.Events, 1)
	assert.Equal(t, ev.ID, got.Events[0].ID)
}

func TestList(t *testing.T) {
	store := NewInMemoryStore()
	require.NoError(t, store.Save(core.NewSession("a", "", []string{"X"})))
	require.NoError(t, store.Save(core.NewSession("b", "", []string{"X"})))

	assert.Len(t, store.List(), 2)
}
