package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsegate/pulsegate/internal/ability"
	"github.com/pulsegate/pulsegate/internal/broadcast"
	"github.com/pulsegate/pulsegate/internal/domain"
	"github.com/pulsegate/pulsegate/internal/hub"
	"github.com/pulsegate/pulsegate/internal/platform/config"
	"github.com/pulsegate/pulsegate/internal/relay"
)

// fakeRedisPinger satisfies the readiness probe without a Redis server.
type fakeRedisPinger struct {
	err error
}

func (f *fakeRedisPinger) Ping(ctx context.Context) *goredis.StatusCmd {
	cmd := goredis.NewStatusCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
	}
	return cmd
}

// fakeStrategy serves fixed rooms; verify behaves per the configured error.
type fakeStrategy struct {
	name      string
	rooms     []domain.Room
	verifyErr error
	verifies  int
	mu        sync.Mutex
}

func (f *fakeStrategy) Name() string { return f.name }

func (f *fakeStrategy) Rooms(context.Context) ([]domain.Room, error) { return f.rooms, nil }

func (f *fakeStrategy) RoomName(room domain.Room) string { return room.Name }

func (f *fakeStrategy) Verify(context.Context, any) error {
	f.mu.Lock()
	f.verifies++
	f.mu.Unlock()
	return f.verifyErr
}

// openStrategy has no verify hook at all.
type openStrategy struct{}

func (openStrategy) Name() string                                { return "open" }
func (openStrategy) Rooms(context.Context) ([]domain.Room, error) { return nil, nil }
func (openStrategy) RoomName(room domain.Room) string            { return room.Name }

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:                  "test",
		Port:                    "0",
		RoomTimeout:             time.Second,
		MaxWebSocketConnections: 100,
		MaxConnectionsPerIP:     100,
		ConnectionRatePerSec:    1000,
		ConnectionBurst:         1000,
	}
}

type serverOpts struct {
	cfg        *config.Config
	strategies []domain.Strategy
	redisErr   error
}

func newTestServer(t *testing.T, opts serverOpts) (*Server, *httptest.Server, *hub.Hub) {
	t.Helper()

	cfg := opts.cfg
	if cfg == nil {
		cfg = testConfig()
	}

	h := hub.NewHub(clockwork.NewRealClock(), cfg.MaxWebSocketConnections)
	t.Cleanup(h.Stop)

	selector := relay.Select(context.Background(), relay.Options{
		ClusterSocket: filepath.Join(t.TempDir(), "relay.sock"),
	}, func(env relay.Envelope) { h.Emit(env.Rooms, env.Data) })
	t.Cleanup(func() { _ = selector.Close() })

	channel := broadcast.NewChannel(h, selector)
	gate := broadcast.NewGate(ability.NewProvider())
	pipeline := broadcast.NewPipeline(broadcast.DefaultSanitizer(), broadcast.DefaultTransformer())
	broadcaster := broadcast.NewBroadcaster(channel, gate, pipeline, opts.strategies, clockwork.NewRealClock(), cfg.RoomTimeout)

	srv := NewServer(cfg, h, selector, broadcaster, opts.strategies, &fakeRedisPinger{err: opts.redisErr}, nil)

	ts := httptest.NewServer(srv.echo)
	t.Cleanup(ts.Close)

	return srv, ts, h
}

func TestHandleLiveness(t *testing.T) {
	_, ts, _ := newTestServer(t, serverOpts{})

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, 200, resp.StatusCode)
}

func TestHandleReadiness(t *testing.T) {
	_, ts, _ := newTestServer(t, serverOpts{})

	resp, err := http.Get(ts.URL + "/readyz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ready", body["status"])
	assert.Equal(t, "cluster_local", body["relay_state"])
}

func TestHandleReadiness_RedisDown(t *testing.T) {
	_, ts, _ := newTestServer(t, serverOpts{redisErr: fmt.Errorf("connection refused")})

	resp, err := http.Get(ts.URL + "/readyz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 503, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "redis", body["failed_check"])
}

func TestHandleVersion(t *testing.T) {
	_, ts, _ := newTestServer(t, serverOpts{})

	resp, err := http.Get(ts.URL + "/version")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotEmpty(t, body["go_version"])
}

func TestHandleMetrics(t *testing.T) {
	_, ts, _ := newTestServer(t, serverOpts{})

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, 200, resp.StatusCode)
}

func dialWS(t *testing.T, ts *httptest.Server, query string) (*ws.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?" + query
	conn, resp, err := ws.DefaultDialer.Dial(url, nil)
	if conn != nil {
		t.Cleanup(func() { conn.Close() })
	}
	return conn, resp, err
}

func TestHandleWebSocket_UnknownStrategy(t *testing.T) {
	_, ts, _ := newTestServer(t, serverOpts{})

	_, resp, err := dialWS(t, ts, "strategy=nope")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestHandleWebSocket_InvalidCredentials(t *testing.T) {
	strat := &fakeStrategy{name: "api-token", verifyErr: fmt.Errorf("unknown api token")}
	_, ts, _ := newTestServer(t, serverOpts{strategies: []domain.Strategy{strat}})

	_, resp, err := dialWS(t, ts, "strategy=api-token&credentials=bad")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 401, resp.StatusCode)
	assert.Equal(t, 1, strat.verifies)
}

func TestHandleWebSocket_AttachAndReceive(t *testing.T) {
	strat := &openStrategy{}
	_, ts, h := newTestServer(t, serverOpts{strategies: []domain.Strategy{strat}})

	conn, _, err := dialWS(t, ts, "strategy=open&rooms=admin%20editor,news")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	// Room names are sanitized on attach, so the emit side's names match.
	assert.Equal(t, 1, h.RoomCount("admin-editor"))
	assert.Equal(t, 1, h.RoomCount("news"))

	h.Emit([]string{"admin-editor"}, []byte(`{"event":"article:update"}`))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"article:update"}`, string(msg))
}

func TestHandleWebSocket_DisconnectReleasesSlot(t *testing.T) {
	strat := &openStrategy{}
	srv, ts, h := newTestServer(t, serverOpts{strategies: []domain.Strategy{strat}})

	conn, _, err := dialWS(t, ts, "strategy=open&rooms=a")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(1), srv.limits.Current())

	conn.Close()
	require.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return srv.limits.Current() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHandleWebSocket_PerIPLimit(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConnectionsPerIP = 1

	strat := &openStrategy{}
	_, ts, h := newTestServer(t, serverOpts{cfg: cfg, strategies: []domain.Strategy{strat}})

	_, _, err := dialWS(t, ts, "strategy=open&rooms=a")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	_, resp, err := dialWS(t, ts, "strategy=open&rooms=a")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 429, resp.StatusCode)
}

func TestHandleIngestEvent(t *testing.T) {
	strat := &fakeStrategy{name: "admin", rooms: []domain.Room{
		{Name: "admins", Type: domain.RoomFullAccess},
	}}
	_, ts, h := newTestServer(t, serverOpts{strategies: []domain.Strategy{strat}})

	// Attach a listener first so the broadcast has somewhere to land.
	conn, _, err := ws.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws?strategy=admin&credentials=x&rooms=admins", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	body := `{
		"event": "update",
		"schema": {"uid": "api::article.article", "singular_name": "article", "private_fields": ["secret"]},
		"payload": {"id": 1, "secret": "hidden"}
	}`
	resp, err := http.Post(ts.URL+"/events", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 202, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame map[string]any
	require.NoError(t, json.Unmarshal(msg, &frame))
	assert.Equal(t, "article:update", frame["event"])
	assert.Equal(t, map[string]any{"id": float64(1)}, frame["data"])
}

func TestHandleIngestEvent_Validation(t *testing.T) {
	_, ts, _ := newTestServer(t, serverOpts{})

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"missing event", `{"schema": {"uid": "a", "singular_name": "a"}, "payload": {}}`},
		{"missing schema uid", `{"event": "update", "schema": {"singular_name": "a"}, "payload": {}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+"/events", "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, 400, resp.StatusCode)
		})
	}
}

func TestHandleIngestEvent_NilPayloadAccepted(t *testing.T) {
	strat := &fakeStrategy{name: "admin", rooms: []domain.Room{
		{Name: "admins", Type: domain.RoomFullAccess},
	}}
	_, ts, _ := newTestServer(t, serverOpts{strategies: []domain.Strategy{strat}})

	body := `{"event": "update", "schema": {"uid": "api::article.article", "singular_name": "article"}}`
	resp, err := http.Post(ts.URL+"/events", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	// A nil payload is a defined no-op, still acknowledged.
	assert.Equal(t, 202, resp.StatusCode)
}
