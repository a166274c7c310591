package queue_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dantte-lp/switchd/internal/queue"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestEnqueueMonotonicIndex(t *testing.T) {
	q := queue.New("q")
	now := time.Now()

	id1 := q.Enqueue(queue.Anonymous("c1"), queue.Message{Payload: []byte("a")}, now)
	id2 := q.Enqueue(queue.Anonymous("c1"), queue.Message{Payload: []byte("b")}, now)
	id3 := q.Enqueue(queue.Anonymous("c1"), queue.Message{Payload: []byte("c")}, now)

	assert.Equal(t, uint64(1), id1.Index)
	assert.Equal(t, uint64(2), id2.Index)
	assert.Equal(t, uint64(3), id3.Index)
}

func TestPeekAfterFIFO(t *testing.T) {
	q := queue.New("q")
	now := time.Now()
	for i := 0; i < 5; i++ {
		q.Enqueue(queue.Anonymous("c1"), queue.Message{Payload: []byte{byte(i)}}, now)
	}

	items := q.PeekAfter(-1)
	require.Len(t, items, 5)
	for i, it := range items {
		assert.Equal(t, uint64(i+1), it.ID.Index)
	}

	items = q.PeekAfter(3)
	require.Len(t, items, 2)
	assert.Equal(t, uint64(4), items[0].ID.Index)
	assert.Equal(t, uint64(5), items[1].ID.Index)
}

func TestAckIsIdempotentAndPointwise(t *testing.T) {
	q := queue.New("q")
	now := time.Now()
	id1 := q.Enqueue(queue.Anonymous("c1"), queue.Message{Payload: []byte("a")}, now)
	q.Enqueue(queue.Anonymous("c1"), queue.Message{Payload: []byte("b")}, now)

	q.Ack(id1.Index)
	q.Ack(id1.Index) // idempotent, no panic
	q.Ack(999)        // missing id, silent no-op

	items := q.PeekAfter(-1)
	require.Len(t, items, 1)
	assert.Equal(t, uint64(2), items[0].ID.Index)
}

func TestFindEntry(t *testing.T) {
	q := queue.New("q")
	now := time.Now()
	id := q.Enqueue(queue.Named("alice"), queue.Message{Payload: []byte("hi")}, now)

	entry, ok := q.Find(id.Index)
	require.True(t, ok)
	assert.Equal(t, "alice", entry.Origin.Session)

	_, ok = q.Find(id.Index + 1)
	assert.False(t, ok)
}

func TestWaitWakesOnEnqueue(t *testing.T) {
	q := queue.New("q")
	errCh := make(chan error, 1)
	go func() {
		errCh <- q.Wait(context.Background())
	}()

	time.Sleep(10 * time.Millisecond) // let the waiter register
	q.Enqueue(queue.Anonymous("c1"), queue.Message{Payload: []byte("x")}, time.Now())

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Wait did not wake on enqueue")
	}
}

func TestWaitWakesAllOnEnqueue(t *testing.T) {
	q := queue.New("q")
	const n = 5
	var wg sync.WaitGroup
	wg.Add(n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			defer wg.Done()
			errs[i] = q.Wait(context.Background())
		}()
	}

	time.Sleep(10 * time.Millisecond)
	q.Enqueue(queue.Anonymous("c1"), queue.Message{Payload: []byte("x")}, time.Now())
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
}

func TestWaitWokenByDeletion(t *testing.T) {
	q := queue.New("q")
	errCh := make(chan error, 1)
	go func() {
		errCh <- q.Wait(context.Background())
	}()

	time.Sleep(10 * time.Millisecond)
	q.MarkDeleted()

	select {
	case err := <-errCh:
		assert.True(t, errors.Is(err, queue.ErrDeleted))
	case <-time.After(time.Second):
		t.Fatal("Wait did not wake on deletion")
	}
}

func TestWaitOnAlreadyDeletedQueueReturnsImmediately(t *testing.T) {
	q := queue.New("q")
	q.MarkDeleted()

	err := q.Wait(context.Background())
	assert.True(t, errors.Is(err, queue.ErrDeleted))
}

func TestWaitCancelledByContext(t *testing.T) {
	q := queue.New("q")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := q.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCursorIdempotence(t *testing.T) {
	q := queue.New("q")
	now := time.Now()
	q.Enqueue(queue.Anonymous("c1"), queue.Message{Payload: []byte("a")}, now)

	first := q.PeekAfter(0)
	second := q.PeekAfter(0)
	assert.Equal(t, first, second)
}
