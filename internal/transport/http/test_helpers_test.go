package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/privchat/internal/auth"
	"github.com/vovakirdan/privchat/internal/config"
	"github.com/vovakirdan/privchat/internal/core"
	"github.com/vovakirdan/privchat/internal/proto"
	"github.com/vovakirdan/privchat/internal/store/sqlite"
)

type testEnv struct {
	ts      *httptest.Server
	handler http.Handler
	auth    *auth.Service
	store   *sqlite.SQLiteStore
	hub     *core.Hub
}

// startTestServer wires an in-memory store, hub and HTTP server.
func startTestServer(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()

	st, err := sqlite.New(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.ReadHeaderTimeout = time.Second
	cfg.ShutdownTimeout = time.Second
	cfg.MaxMessageBytes = 1 << 20
	cfg.JWTSecret = "test-secret"
	if mutate != nil {
		mutate(&cfg)
	}

	disabledLogger := zerolog.Nop()

	presence := core.NewPresence()
	router := core.NewRouter(st, st, presence, core.NewLivePusher(&disabledLogger), &disabledLogger)
	hub := core.NewHub(router, presence, &disabledLogger)

	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	}, &disabledLogger, auth.WithPasswordCost(4), auth.WithEvictor(hub))

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	server := NewServer(hub, authService, st, &cfg, &disabledLogger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, handler: server.Handler, auth: authService, store: st, hub: hub}
}

func (e *testEnv) register(t *testing.T, username string) string {
	t.Helper()

	token, _, err := e.auth.Register(context.Background(), username, "password123")
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return token
}

func (e *testEnv) request(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp := httptest.NewRecorder()
	e.handler.ServeHTTP(resp, req)
	return resp
}

func (e *testEnv) dial(t *testing.T, ctx context.Context) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

// connect dials, says hello and waits for the acknowledgement.
func (e *testEnv) connect(t *testing.T, ctx context.Context, user, token string) *websocket.Conn {
	t.Helper()

	conn := e.dial(t, ctx)
	send(t, ctx, conn, proto.InboundTypeHello, proto.HelloData{User: user, Token: token, Protocol: proto.ProtocolVersion})

	ack := readOutbound(t, ctx, conn)
	if ack.Type != proto.OutboundTypeEvent || ack.Event != proto.EventHello {
		t.Fatalf("expected hello ack, got %+v", ack)
	}
	return conn
}

type rawOutbound struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func send(t *testing.T, ctx context.Context, conn *websocket.Conn, typ string, data any) {
	t.Helper()

	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s: %v", typ, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		t.Fatalf("send %s: %v", typ, err)
	}
}

func readOutbound(t *testing.T, ctx context.Context, conn *websocket.Conn) rawOutbound {
	t.Helper()

	var out rawOutbound
	if err := wsjson.Read(ctx, conn, &out); err != nil {
		t.Fatalf("read outbound: %v", err)
	}
	return out
}

func readMessage(t *testing.T, ctx context.Context, conn *websocket.Conn) proto.EventMessageData {
	t.Helper()

	out := readOutbound(t, ctx, conn)
	if out.Type != proto.OutboundTypeEvent || out.Event != proto.EventMessage {
		t.Fatalf("expected message event, got %+v", out)
	}
	var ev proto.EventMessageData
	if err := json.Unmarshal(out.Data, &ev); err != nil {
		t.Fatalf("unmarshal message: %v", err)
	}
	return ev
}

func readError(t *testing.T, ctx context.Context, conn *websocket.Conn) *proto.Error {
	t.Helper()

	out := readOutbound(t, ctx, conn)
	if out.Type != proto.OutboundTypeError || out.Error == nil {
		t.Fatalf("expected error, got %+v", out)
	}
	return out.Error
}

func decode[T any](t *testing.T, resp *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	if err := json.Unmarshal(resp.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", resp.Body.String(), err)
	}
	return v
}
