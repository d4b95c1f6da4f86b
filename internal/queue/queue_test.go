package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srinathv31/eventlogger/internal/model"
)

func TestTryOfferRespectsCapacity(t *testing.T) {
	q := New(2)
	require.True(t, q.TryOffer(model.QueuedEvent{}))
	require.True(t, q.TryOffer(model.QueuedEvent{}))
	assert.False(t, q.TryOffer(model.QueuedEvent{}), "third offer should be rejected once the queue is full")
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, 2, q.Cap())
}

func TestDrainUpToReturnsNilOnTimeout(t *testing.T) {
	q := New(10)
	batch := q.DrainUpTo(5, 10*time.Millisecond)
	assert.Nil(t, batch)
}

func TestDrainUpToGreedilyTakesAvailable(t *testing.T) {
	q := New(10)
	for i := 0; i < 3; i++ {
		require.True(t, q.TryOffer(model.QueuedEvent{Attempts: i}))
	}
	batch := q.DrainUpTo(5, 50*time.Millisecond)
	require.Len(t, batch, 3)
	assert.Equal(t, 0, batch[0].Attempts)
	assert.Equal(t, 2, batch[2].Attempts)
}

func TestDrainUpToCapsAtN(t *testing.T) {
	q := New(10)
	for i := 0; i < 5; i++ {
		require.True(t, q.TryOffer(model.QueuedEvent{}))
	}
	batch := q.DrainUpTo(2, 50*time.Millisecond)
	assert.Len(t, batch, 2)
	assert.Equal(t, 3, q.Len())
}

func TestDrainAllIsNonBlockingAndExhaustive(t *testing.T) {
	q := New(10)
	assert.Empty(t, q.DrainAll())

	for i := 0; i < 4; i++ {
		require.True(t, q.TryOffer(model.QueuedEvent{}))
	}
	batch := q.DrainAll()
	assert.Len(t, batch, 4)
	assert.Equal(t, 0, q.Len())
}
