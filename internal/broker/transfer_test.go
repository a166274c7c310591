package broker_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dantte-lp/switchd/internal/broker"
	"github.com/dantte-lp/switchd/internal/queue"
)

func TestTransferReturnsImmediatelyWhenDataAlreadyPresent(t *testing.T) {
	b := broker.New()
	ctx := context.Background()
	_, err := b.Dispatch(ctx, "conn1", broker.LoginReq{Session: "alice"})
	require.NoError(t, err)
	_, err = b.Dispatch(ctx, "conn1", broker.CreatePersistentReq{Name: "q"})
	require.NoError(t, err)
	_, err = b.Dispatch(ctx, "conn1", broker.SendReq{Name: "q", Message: queue.Message{Payload: []byte("hi")}})
	require.NoError(t, err)

	start := time.Now()
	resp, err := b.Dispatch(ctx, "conn1", broker.TransferReq{Timeout: 5 * time.Second, Queues: []string{"q"}})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	tr := resp.(broker.TransferResp)
	require.Len(t, tr.Messages, 1)
	assert.Equal(t, "1", tr.Next)
}

func TestTransferWakesOnLateSend(t *testing.T) {
	b := broker.New()
	ctx := context.Background()
	_, err := b.Dispatch(ctx, "conn1", broker.LoginReq{Session: "alice"})
	require.NoError(t, err)
	_, err = b.Dispatch(ctx, "conn1", broker.CreatePersistentReq{Name: "q"})
	require.NoError(t, err)

	type result struct {
		resp broker.ResponseBody
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := b.Dispatch(ctx, "conn1", broker.TransferReq{Timeout: 2 * time.Second, Queues: []string{"q"}})
		done <- result{resp, err}
	}()

	time.Sleep(20 * time.Millisecond)
	_, err = b.Dispatch(ctx, "conn1", broker.SendReq{Name: "q", Message: queue.Message{Payload: []byte("late")}})
	require.NoError(t, err)

	select {
	case r := <-done:
		require.NoError(t, r.err)
		tr := r.resp.(broker.TransferResp)
		require.Len(t, tr.Messages, 1)
		assert.Equal(t, []byte("late"), tr.Messages[0].Entry.Message.Payload)
	case <-time.After(time.Second):
		t.Fatal("Transfer did not wake on Send")
	}
}

func TestTransferTimesOutWithEmptyResult(t *testing.T) {
	b := broker.New()
	ctx := context.Background()
	_, err := b.Dispatch(ctx, "conn1", broker.LoginReq{Session: "alice"})
	require.NoError(t, err)
	_, err = b.Dispatch(ctx, "conn1", broker.CreatePersistentReq{Name: "q"})
	require.NoError(t, err)

	start := time.Now()
	resp, err := b.Dispatch(ctx, "conn1", broker.TransferReq{Timeout: 80 * time.Millisecond, Queues: []string{"q"}})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)

	tr := resp.(broker.TransferResp)
	assert.Empty(t, tr.Messages)
	assert.Equal(t, "-1", tr.Next)
}

func TestTransferWakesOnAnyOfMultipleQueues(t *testing.T) {
	b := broker.New()
	ctx := context.Background()
	_, err := b.Dispatch(ctx, "conn1", broker.LoginReq{Session: "alice"})
	require.NoError(t, err)
	_, err = b.Dispatch(ctx, "conn1", broker.CreatePersistentReq{Name: "a"})
	require.NoError(t, err)
	_, err = b.Dispatch(ctx, "conn1", broker.CreatePersistentReq{Name: "b"})
	require.NoError(t, err)

	type result struct {
		resp broker.ResponseBody
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := b.Dispatch(ctx, "conn1", broker.TransferReq{Timeout: 2 * time.Second, Queues: []string{"a", "b"}})
		done <- result{resp, err}
	}()

	time.Sleep(20 * time.Millisecond)
	_, err = b.Dispatch(ctx, "conn1", broker.SendReq{Name: "b", Message: queue.Message{Payload: []byte("on-b")}})
	require.NoError(t, err)

	select {
	case r := <-done:
		require.NoError(t, r.err)
		tr := r.resp.(broker.TransferResp)
		require.Len(t, tr.Messages, 1)
		assert.Equal(t, "b", tr.Messages[0].ID.Queue)
	case <-time.After(time.Second):
		t.Fatal("Transfer did not wake when a sibling queue received a message")
	}
}

func TestTransferFromCursorOnlyReturnsNewerMessages(t *testing.T) {
	b := broker.New()
	ctx := context.Background()
	_, err := b.Dispatch(ctx, "conn1", broker.LoginReq{Session: "alice"})
	require.NoError(t, err)
	_, err = b.Dispatch(ctx, "conn1", broker.CreatePersistentReq{Name: "q"})
	require.NoError(t, err)
	_, err = b.Dispatch(ctx, "conn1", broker.SendReq{Name: "q", Message: queue.Message{Payload: []byte("first")}})
	require.NoError(t, err)

	first, err := b.Dispatch(ctx, "conn1", broker.TransferReq{Timeout: time.Second, Queues: []string{"q"}})
	require.NoError(t, err)
	next := first.(broker.TransferResp).Next
	require.Equal(t, "1", next)

	_, err = b.Dispatch(ctx, "conn1", broker.SendReq{Name: "q", Message: queue.Message{Payload: []byte("second")}})
	require.NoError(t, err)

	cursor, err := strconv.ParseInt(next, 10, 64)
	require.NoError(t, err)
	second, err := b.Dispatch(ctx, "conn1", broker.TransferReq{From: &cursor, Timeout: time.Second, Queues: []string{"q"}})
	require.NoError(t, err)
	tr := second.(broker.TransferResp)
	require.Len(t, tr.Messages, 1)
	assert.Equal(t, []byte("second"), tr.Messages[0].Entry.Message.Payload)
}

func TestTransferNotLoggedIn(t *testing.T) {
	b := broker.New()
	ctx := context.Background()
	resp, err := b.Dispatch(ctx, "conn1", broker.TransferReq{Timeout: time.Second, Queues: []string{"q"}})
	require.NoError(t, err)
	assert.IsType(t, broker.NotLoggedInResp{}, resp)
}

func TestTraceCatchesUpFromCursor(t *testing.T) {
	b := broker.New()
	ctx := context.Background()
	_, err := b.Dispatch(ctx, "conn1", broker.LoginReq{Session: "alice"})
	require.NoError(t, err)
	_, err = b.Dispatch(ctx, "conn1", broker.CreatePersistentReq{Name: "q"})
	require.NoError(t, err)
	_, err = b.Dispatch(ctx, "conn1", broker.SendReq{Name: "q", Message: queue.Message{Payload: []byte("a")}})
	require.NoError(t, err)
	_, err = b.Dispatch(ctx, "conn1", broker.SendReq{Name: "q", Message: queue.Message{Payload: []byte("b")}})
	require.NoError(t, err)

	resp, err := b.Dispatch(ctx, "conn1", broker.TraceReq{From: 0, Timeout: time.Second})
	require.NoError(t, err)
	events := resp.(broker.TraceResp).Events
	require.Len(t, events, 2)

	last := events[len(events)-1].Cursor
	resp, err = b.Dispatch(ctx, "conn1", broker.TraceReq{From: last, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)
	assert.Empty(t, resp.(broker.TraceResp).Events)
}
