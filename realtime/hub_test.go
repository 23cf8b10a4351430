package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T, id Identity) (*Hub, *websocket.Conn) {
	t.Helper()
	hub := NewHub()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := hub.ServeWS(w, r, id); err != nil {
			t.Logf("upgrade: %v", err)
		}
	}))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	msg := readMessage(t, conn)
	require.Equal(t, EventConnected, msg.Event)
	return hub, conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestIdentityRooms(t *testing.T) {
	assert.Equal(t, []string{"user:4", "role:buyer"}, Identity{UserID: 4, Role: "buyer"}.Rooms())
	assert.Equal(t, []string{"user:9", "role:seller", "store:3"}, Identity{UserID: 9, Role: "seller", StoreID: 3}.Rooms())
}

func TestHubDeliversToJoinedRooms(t *testing.T) {
	hub, conn := startHub(t, Identity{UserID: 5, Role: "seller", StoreID: 2})

	assert.Equal(t, 1, hub.RoomSize(UserRoom(5)))
	assert.Equal(t, 1, hub.RoomSize(StoreRoom(2)))
	assert.Equal(t, 1, hub.RoomSize(RoleRoom("seller")))

	hub.EmitToStore(2, EventOrderCreated, map[string]any{"orderId": 42})
	msg := readMessage(t, conn)
	assert.Equal(t, EventOrderCreated, msg.Event)
	assert.Equal(t, float64(42), msg.Data.(map[string]any)["orderId"])

	hub.EmitToUser(6, EventNotificationNew, "not for you")
	hub.EmitToRole("seller", EventPaymentUpdated, "for sellers")
	msg = readMessage(t, conn)
	assert.Equal(t, EventPaymentUpdated, msg.Event, "event for another user must be skipped")
}

func TestHubAnswersPing(t *testing.T) {
	_, conn := startHub(t, Identity{UserID: 1, Role: "buyer"})

	require.NoError(t, conn.WriteJSON(map[string]string{"event": "ping"}))
	msg := readMessage(t, conn)
	assert.Equal(t, EventPong, msg.Event)
}

func TestHubRemovesClosedClients(t *testing.T) {
	hub, conn := startHub(t, Identity{UserID: 3, Role: "buyer"})
	require.Equal(t, 1, hub.RoomSize(UserRoom(3)))

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool {
		return hub.RoomSize(UserRoom(3)) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHubRejectsForeignOrigin(t *testing.T) {
	hub := NewHub(WithAllowedOrigins([]string{"https://www.amexan.store"}))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.ServeWS(w, r, Identity{UserID: 1, Role: "buyer"})
	}))
	defer srv.Close()

	header := http.Header{}
	header.Set("Origin", "https://evil.example")
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
