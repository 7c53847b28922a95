package intercept

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"github.com/iudanet/offsync/internal/client/bus"
	"github.com/iudanet/offsync/internal/models"
	"github.com/iudanet/offsync/pkg/api"
)

func newTestProxy(t *testing.T, target string) (*httptest.Server, *bus.Bus[bus.Message], *testEnv) {
	t.Helper()

	env := newTestEnv(t, "v1")
	messages := bus.New[bus.Message]()
	env.ic.messages = messages

	u, err := url.Parse(target)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(NewProxy(u, env.ic, messages, logger))
	t.Cleanup(srv.Close)
	return srv, messages, env
}

func TestProxy_ForwardsAndTagsStrategy(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/orders/o-1", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("X-Forwarded-For"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"o-1","data":{}}`)
	})
	srv, _, _ := newTestProxy(t, up.URL)

	resp, err := http.Get(srv.URL + "/api/v1/orders/o-1")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, string(StrategyNetworkFirst), resp.Header.Get(StrategyHeader))
}

func TestProxy_BadGatewayForPassthrough(t *testing.T) {
	srv, _, _ := newTestProxy(t, deadURL(t))

	resp, err := http.Post(srv.URL+"/api/v1/auth/login", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestProxy_StreamsQueuedOperations(t *testing.T) {
	srv, messages, env := newTestProxy(t, deadURL(t))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+MessagesPath, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	// Ждем, пока обработчик подпишется на шину
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				messages.Publish(bus.NewSyncRequested("manual"))
			}
		}
	}()
	_, data, err := conn.Read(ctx)
	close(stop)
	require.NoError(t, err)
	msg, err := bus.DecodeMessage(data)
	require.NoError(t, err)
	require.Equal(t, bus.MessageSyncRequested, msg.Type)

	resp, err := http.Post(srv.URL+"/api/v1/orders", "application/json", strings.NewReader(`{"total":3}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var pending api.PendingSyncResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&pending))

	for {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		msg, err := bus.DecodeMessage(data)
		require.NoError(t, err)
		if msg.Type != bus.MessageOperationQueued {
			continue
		}
		queued, err := msg.OperationQueued()
		require.NoError(t, err)
		assert.Equal(t, pending.OperationID, queued.OperationID)
		assert.Equal(t, models.OperationCreate, queued.OperationType)
		break
	}

	n, err := env.queue.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
