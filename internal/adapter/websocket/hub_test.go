package websocket

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/voltx/rec-hub/internal/domain"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000c3")
)

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(zap.NewNop())
	go hub.Run(ctx)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use("/ws", Upgrade())
	app.Get("/ws/events", hub.Handler())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()

	t.Cleanup(func() {
		cancel()
		_ = app.Shutdown()
	})
	return hub, "ws://" + ln.Addr().String() + "/ws/events"
}

func dial(t *testing.T, hub *Hub, url string, want int) *gorilla.Conn {
	t.Helper()
	conn, _, err := gorilla.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.Eventually(t, func() bool { return hub.ClientCount() == want }, 2*time.Second, 10*time.Millisecond)
	return conn
}

func readEvent(t *testing.T, conn *gorilla.Conn) domain.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var e domain.Event
	require.NoError(t, json.Unmarshal(data, &e))
	return e
}

func TestHub_BroadcastsEvents(t *testing.T) {
	// Arrange
	hub, url := startHub(t)
	conn := dial(t, hub, url, 1)

	// Act
	hub.OnEvents(context.Background(), []domain.Event{
		{ID: "e1", Type: domain.EventPaused},
		{ID: "e2", Type: domain.EventUnpaused},
	})

	// Assert
	assert.Equal(t, "e1", readEvent(t, conn).ID)
	assert.Equal(t, "e2", readEvent(t, conn).ID)
}

func TestHub_FiltersByAccountAndType(t *testing.T) {
	// Arrange
	hub, url := startHub(t)
	conn := dial(t, hub, url+"?account="+bob.Hex()+"&types=Transfer", 1)

	// Act
	hub.OnEvents(context.Background(), []domain.Event{
		{ID: "mint-alice", Type: domain.EventTransfer, To: &alice},
		{ID: "minted", Type: domain.EventMinted, To: &bob},
		{ID: "to-bob", Type: domain.EventTransfer, From: &alice, To: &bob},
	})

	// Assert
	assert.Equal(t, "to-bob", readEvent(t, conn).ID)
}

func TestHub_RejectsPlainHTTP(t *testing.T) {
	app := fiber.New()
	app.Use("/ws", Upgrade())
	app.Get("/ws/events", NewHub(zap.NewNop()).Handler())

	resp, err := app.Test(httptestRequest("/ws/events"))

	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}

func TestHub_OnEventsNeverBlocks(t *testing.T) {
	hub := NewHub(zap.NewNop())

	done := make(chan struct{})
	go func() {
		events := make([]domain.Event, broadcastQueue+10)
		hub.OnEvents(context.Background(), events)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("OnEvents blocked with no hub running")
	}
}

func TestClient_Wants(t *testing.T) {
	tests := []struct {
		name   string
		client Client
		event  domain.Event
		want   bool
	}{
		{name: "no filters", client: Client{}, event: domain.Event{Type: domain.EventPaused}, want: true},
		{name: "type match", client: Client{types: map[domain.EventType]bool{domain.EventRetired: true}}, event: domain.Event{Type: domain.EventRetired}, want: true},
		{name: "type miss", client: Client{types: map[domain.EventType]bool{domain.EventRetired: true}}, event: domain.Event{Type: domain.EventBurned}, want: false},
		{name: "account as sender", client: Client{account: &alice}, event: domain.Event{From: &alice}, want: true},
		{name: "account as subject", client: Client{account: &alice}, event: domain.Event{Account: &alice}, want: true},
		{name: "unrelated account", client: Client{account: &alice}, event: domain.Event{From: &bob, To: &bob}, want: false},
		{name: "account filter on global event", client: Client{account: &alice}, event: domain.Event{Type: domain.EventPaused}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.client.wants(tt.event))
		})
	}
}

func httptestRequest(path string) *http.Request {
	return httptest.NewRequest(http.MethodGet, path, nil)
}
