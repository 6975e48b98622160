package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bowarc/Tetris-wasm/config"
	"github.com/Bowarc/Tetris-wasm/domain"
	"github.com/Bowarc/Tetris-wasm/hub"
	"github.com/Bowarc/Tetris-wasm/protocol"
)

type testServer struct {
	*httptest.Server
	hub     *hub.Hub
	handler *protocol.Handler
}

func loadTestConfig(t *testing.T, yaml string) *config.Config {
	t.Helper()
	for _, key := range []string{config.EnvConfigPath, config.EnvPort, config.EnvLogLevel, config.EnvLogFormat} {
		t.Setenv(key, "")
	}
	path := filepath.Join(t.TempDir(), "relay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func newTestServer(t *testing.T, yaml string) *testServer {
	t.Helper()
	cfg := loadTestConfig(t, yaml)

	h := hub.New(hub.WithMaxParallelSends(cfg.Relay.MaxParallelSends))
	handler := protocol.NewHandler(h, protocol.WithPrefix(cfg.Prefix()))
	srv := httptest.NewServer(newMux(cfg, h, handler))
	t.Cleanup(func() {
		h.CloseAll()
		srv.Close()
	})
	return &testServer{Server: srv, hub: h, handler: handler}
}

func (s *testServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	before := s.hub.Len()

	url := "ws" + strings.TrimPrefix(s.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return s.hub.Len() == before+1 },
		2*time.Second, 5*time.Millisecond, "client never registered")
	return conn
}

func readText(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	typ, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, typ)
	return string(data)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, "")

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestRelay_EndToEnd(t *testing.T) {
	srv := newTestServer(t, "")
	a := srv.dial(t)
	b := srv.dial(t)
	c := srv.dial(t)

	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(`{"BoardUpdate":{"rows":[1,2]}}`)))

	for _, peer := range []*websocket.Conn{b, c} {
		frame := readText(t, peer)
		require.True(t, strings.HasPrefix(frame, "Broadcast: "), frame)

		msg, err := domain.DecodeServerFrame([]byte(frame))
		require.NoError(t, err)
		relayed, ok := msg.(domain.Broadcast)
		require.True(t, ok)
		assert.Equal(t, domain.BoardUpdate{Board: json.RawMessage(`{"rows":[1,2]}`)}, relayed.Msg)
	}

	require.Eventually(t, func() bool { return srv.handler.Stats().Relayed == 2 },
		time.Second, 5*time.Millisecond)

	resp, err := http.Get(srv.URL + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	var stats statsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 3, stats.Clients)
	assert.Equal(t, int64(1), stats.Received)
	assert.Equal(t, int64(2), stats.Relayed)
	assert.Zero(t, stats.Malformed)
}

func TestAdminBroadcast(t *testing.T) {
	tests := []struct {
		name string
		send func(url string) (*http.Response, error)
		want string
	}{
		{
			name: "path content",
			send: func(url string) (*http.Response, error) { return http.Get(url + "/broadcast/hello") },
			want: "Broadcast: hello",
		},
		{
			name: "post body",
			send: func(url string) (*http.Response, error) {
				return http.Post(url+"/broadcast", "text/plain", bytes.NewBufferString(`{"notice":"restart"}`))
			},
			want: `Broadcast: {"notice":"restart"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, "")
			a := srv.dial(t)
			b := srv.dial(t)

			resp, err := tt.send(srv.URL)
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, http.StatusOK, resp.StatusCode)

			var report domain.DeliveryReport
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
			assert.Equal(t, domain.DeliveryReport{Delivered: 2}, report)

			assert.Equal(t, tt.want, readText(t, a))
			assert.Equal(t, tt.want, readText(t, b))
		})
	}
}

func TestAdminBroadcast_BodyTooLarge(t *testing.T) {
	srv := newTestServer(t, "session:\n  max_message_size: 8\n")

	resp, err := http.Post(srv.URL+"/broadcast", "text/plain", strings.NewReader("this is longer than eight bytes"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestConnections_ListAndDisconnect(t *testing.T) {
	srv := newTestServer(t, "")
	conn := srv.dial(t)

	resp, err := http.Get(srv.URL + "/connections")
	require.NoError(t, err)
	var list connectionsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	resp.Body.Close()

	require.Equal(t, 1, list.Clients)
	require.Len(t, list.IDs, 1)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/connections/"+list.IDs[0], nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	require.Eventually(t, func() bool { return srv.hub.Len() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestDisconnect_Errors(t *testing.T) {
	srv := newTestServer(t, "")

	tests := []struct {
		name string
		id   string
		want int
	}{
		{name: "not an id", id: "player-one", want: http.StatusBadRequest},
		{name: "unknown decimal id", id: "12345", want: http.StatusNotFound},
		{name: "unknown hex id", id: "00000000-0000-0000-0000-000000000001", want: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodDelete, srv.URL+"/connections/"+tt.id, nil)
			require.NoError(t, err)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestAdminDisabled(t *testing.T) {
	srv := newTestServer(t, "server:\n  admin_enabled: false\n")

	for _, path := range []string{"/broadcast/hello", "/connections"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, config.LogConfig{Level: "warn", Format: "json"})

	logger.Info("hidden")
	logger.Warn("shown", "clientId", "abc")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "abc", entry["clientId"])
}
