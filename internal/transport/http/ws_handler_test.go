package http

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/roomline/roomline-server/internal/auth"
	"github.com/roomline/roomline-server/internal/chat"
	"github.com/roomline/roomline-server/internal/config"
	"github.com/roomline/roomline-server/internal/store/memory"
)

func startTestServer(t *testing.T) (*httptest.Server, *auth.Service) {
	t.Helper()

	logger := zerolog.Nop()
	st := memory.New("Free Chat", "General")
	registry := chat.NewRegistry(logger)
	chatSvc := chat.NewService(st, registry, chat.Policy{}, logger)
	if err := chatSvc.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	authSvc := auth.NewService(st, &auth.JWTConfig{
		Secret: []byte("test-secret"),
		Issuer: "roomline-test",
		TTL:    time.Hour,
	})

	server := NewServer(chatSvc, authSvc, config.Config{
		Addr:              ":0",
		ReadHeaderTimeout: time.Second,
	}, &logger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return ts, authSvc
}

func dialWS(t *testing.T, ctx context.Context, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func readLine(t *testing.T, ctx context.Context, conn *websocket.Conn) string {
	t.Helper()
	typ, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if typ != websocket.MessageText {
		t.Fatalf("unexpected message type: %v", typ)
	}
	return string(data)
}

func TestHealthEndpoint(t *testing.T) {
	ts, _ := startTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestWebSocketAnonymousChat(t *testing.T) {
	ts, _ := startTestServer(t)
	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connA := dialWS(t, ctx, wsURL)
	connB := dialWS(t, ctx, wsURL)

	if err := connA.Write(ctx, websocket.MessageText, []byte("hi there")); err != nil {
		t.Fatalf("write: %v", err)
	}

	want := "MESSAGE:[Free Chat] Anonymous: hi there"
	if got := readLine(t, ctx, connB); got != want {
		t.Fatalf("unexpected line: %q", got)
	}
	if got := readLine(t, ctx, connA); got != want {
		t.Fatalf("sender did not receive own message: %q", got)
	}
}

func TestWebSocketCommandFeedback(t *testing.T) {
	ts, _ := startTestServer(t)
	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dialWS(t, ctx, wsURL)
	if err := conn.Write(ctx, websocket.MessageText, []byte("#register alice secret")); err != nil {
		t.Fatalf("write: %v", err)
	}

	if got, want := readLine(t, ctx, conn), `SERVER:You are registered as "alice"`; got != want {
		t.Fatalf("unexpected feedback: %q", got)
	}
}

func TestWebSocketTokenIdentity(t *testing.T) {
	ts, authSvc := startTestServer(t)
	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	token, err := authSvc.Register(ctx, "alice", "secret123")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	conn := dialWS(t, ctx, wsURL+"?token="+token)
	if err := conn.Write(ctx, websocket.MessageText, []byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}

	if got, want := readLine(t, ctx, conn), "MESSAGE:[Free Chat] alice: hello"; got != want {
		t.Fatalf("unexpected line: %q", got)
	}
}

func TestWebSocketRejectsInvalidToken(t *testing.T) {
	ts, _ := startTestServer(t)
	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, resp, err := websocket.Dial(ctx, wsURL+"?token=garbage", nil)
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != 401 {
		t.Fatalf("expected 401 response, got %+v", resp)
	}
}
