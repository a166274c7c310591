package trace_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dantte-lp/switchd/internal/trace"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNewStampsUniqueInstanceID(t *testing.T) {
	r1 := trace.New(10)
	r2 := trace.New(10)
	assert.NotEmpty(t, r1.InstanceID())
	assert.NotEqual(t, r1.InstanceID(), r2.InstanceID())
}

func TestAppendAssignsMonotonicCursor(t *testing.T) {
	r := trace.New(10)
	e1 := r.Append(trace.Event{Queue: "svc"})
	e2 := r.Append(trace.Event{Queue: "svc"})
	assert.Less(t, e1.Cursor, e2.Cursor)
}

func TestCapacityEvictsOldest(t *testing.T) {
	r := trace.New(3)
	for i := 0; i < 5; i++ {
		r.Append(trace.Event{Queue: "svc"})
	}
	evs := r.Get(context.Background(), 0, time.Millisecond)
	require.Len(t, evs, 3)
	assert.Equal(t, int64(3), evs[0].Cursor)
	assert.Equal(t, int64(5), evs[2].Cursor)
}

func TestGetBlocksThenReturnsOnAppend(t *testing.T) {
	r := trace.New(10)
	done := make(chan []trace.Event, 1)
	go func() {
		done <- r.Get(context.Background(), 0, time.Second)
	}()

	time.Sleep(10 * time.Millisecond)
	r.Append(trace.Event{Queue: "svc"})

	select {
	case evs := <-done:
		require.Len(t, evs, 1)
	case <-time.After(time.Second):
		t.Fatal("Get did not wake on Append")
	}
}

func TestGetTimesOutEmpty(t *testing.T) {
	r := trace.New(10)
	start := time.Now()
	evs := r.Get(context.Background(), 0, 50*time.Millisecond)
	assert.Nil(t, evs)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}
