package switchclient_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dantte-lp/switchd/internal/broker"
	"github.com/dantte-lp/switchd/internal/transporthttp"
	"github.com/dantte-lp/switchd/pkg/switchclient"
)

func newTestServer(t *testing.T, b *broker.Broker) *httptest.Server {
	t.Helper()
	tracker := transporthttp.NewConnTracker()
	h := transporthttp.New(b, nil)

	srv := httptest.NewUnstartedServer(h)
	srv.Config.ConnContext = tracker.ConnContext
	srv.Config.ConnState = tracker.StateHook(b)
	srv.Start()
	t.Cleanup(srv.Close)
	return srv
}

func TestRequestResponseRoundTrip(t *testing.T) {
	b := broker.New()
	srv := newTestServer(t, b)

	a := switchclient.New(srv.URL)
	bClient := switchclient.New(srv.URL)
	ctx := context.Background()

	require.NoError(t, a.Login(ctx, "a"))
	require.NoError(t, a.CreateTransient(ctx, "a-reply"))

	require.NoError(t, bClient.Login(ctx, "b"))
	require.NoError(t, bClient.CreatePersistent(ctx, "svc"))

	id, err := a.Send(ctx, "svc", switchclient.Message{Payload: []byte("ping"), Kind: switchclient.KindRequest, ReplyTo: "a-reply"})
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, "svc", id.Queue)
	assert.Equal(t, uint64(1), id.Index)

	items, next, err := bClient.Transfer(ctx, "", 2*time.Second, []string{"svc"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "ping", string(items[0].Message.Payload))
	assert.Equal(t, "1", next)

	require.NoError(t, bClient.Ack(ctx, items[0].ID))
}

func TestListAndDiagnostics(t *testing.T) {
	b := broker.New()
	srv := newTestServer(t, b)
	c := switchclient.New(srv.URL)
	ctx := context.Background()

	require.NoError(t, c.Login(ctx, "lister"))
	require.NoError(t, c.CreatePersistent(ctx, "one"))
	require.NoError(t, c.CreatePersistent(ctx, "two"))

	names, err := c.List(ctx, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"one", "two"}, names)

	raw, err := c.Diagnostics(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "diagnostics")
}

func TestSendWithoutLoginReturnsNotLoggedIn(t *testing.T) {
	b := broker.New()
	srv := newTestServer(t, b)
	c := switchclient.New(srv.URL)
	ctx := context.Background()

	_, err := c.Send(ctx, "q", switchclient.Message{Payload: []byte("x"), Kind: switchclient.KindRequest, ReplyTo: "r"})
	assert.ErrorIs(t, err, switchclient.ErrNotLoggedIn)
}
