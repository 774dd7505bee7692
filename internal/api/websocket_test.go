package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/vantage-sync/internal/archive"
	"github.com/nerrad567/vantage-sync/internal/feed"
	"github.com/nerrad567/vantage-sync/internal/syncer"
)

// dialHub serves srv over httptest and opens a WebSocket to /api/v1/ws.
func dialHub(t *testing.T, srv *Server, query string) *websocket.Conn {
	t.Helper()

	ts := httptest.NewServer(srv.buildRouter())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })

	waitFor(t, func() bool { return srv.Hub().ClientCount() == 1 })
	return conn
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met within 2s")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	//nolint:errcheck // Test deadline
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return msg
}

func TestWebSocket_ReadingStream(t *testing.T) {
	srv := testServer(t, nil)
	conn := dialHub(t, srv, "?channels=reading")

	err := srv.Hub().PublishReadings(context.Background(), []archive.Reading{
		{Time: testSince, Fields: map[string]any{"temp_out": 21.5}},
	})
	if err != nil {
		t.Fatalf("PublishReadings() error = %v", err)
	}

	msg := readMessage(t, conn)
	if msg.Type != WSTypeEvent || msg.EventType != ChannelReading {
		t.Fatalf("message = %+v", msg)
	}
	raw, err := json.Marshal(msg.Payload)
	if err != nil {
		t.Fatalf("re-encoding payload: %v", err)
	}
	var got feed.ReadingMessage
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("payload %s is not a reading message: %v", raw, err)
	}

	if got.Station != "garden" {
		t.Errorf("station = %q, want garden", got.Station)
	}
	if !got.Time.Equal(testSince) {
		t.Errorf("time = %v, want %v", got.Time, testSince)
	}
	if got.Unix != 1718462100 {
		t.Errorf("unix = %d, want 1718462100", got.Unix)
	}
	if len(got.Fields) != 1 || got.Fields["temp_out"] != 21.5 {
		t.Errorf("fields = %v, want temp_out=21.5", got.Fields)
	}
}

func TestWebSocket_SubscribeMessage(t *testing.T) {
	srv := testServer(t, nil)
	conn := dialHub(t, srv, "")

	// Not subscribed yet: status events are not delivered.
	if err := conn.WriteJSON(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "1",
		Payload: WSSubscribePayload{Channels: []string{ChannelStatus}},
	}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	ack := readMessage(t, conn)
	if ack.Type != WSTypeResponse || ack.ID != "1" {
		t.Fatalf("ack = %+v", ack)
	}

	if err := srv.Hub().PublishStatus(context.Background(), syncer.Status{State: syncer.StateFaulted}); err != nil {
		t.Fatalf("PublishStatus() error = %v", err)
	}

	msg := readMessage(t, conn)
	if msg.EventType != ChannelStatus {
		t.Fatalf("event_type = %q, want status", msg.EventType)
	}
	payload, _ := msg.Payload.(map[string]any)
	if payload["state"] != string(syncer.StateFaulted) {
		t.Errorf("payload state = %v", payload["state"])
	}
}

func TestWebSocket_Unsubscribed(t *testing.T) {
	srv := testServer(t, nil)
	conn := dialHub(t, srv, "?channels=status")

	// Readings go nowhere; the next message must be the ping reply.
	//nolint:errcheck // Hub publish never fails
	srv.Hub().PublishReadings(context.Background(), []archive.Reading{{Time: testSince, Fields: map[string]any{"x": 1.0}}})
	if err := conn.WriteJSON(WSMessage{Type: WSTypePing, ID: "p"}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	msg := readMessage(t, conn)
	if msg.Type != WSTypePong || msg.ID != "p" {
		t.Errorf("message = %+v, want pong", msg)
	}
}

func TestWebSocket_ProtocolErrors(t *testing.T) {
	tests := []struct {
		name string
		send string
		want string
	}{
		{"invalid json", `{not json`, "invalid JSON message"},
		{"unknown type", `{"type":"shout","id":"9"}`, "unknown message type: shout"},
		{"unknown channel", `{"type":"subscribe","id":"3","payload":{"channels":["rain"]}}`, "unknown channel: rain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testServer(t, nil)
			conn := dialHub(t, srv, "")

			if err := conn.WriteMessage(websocket.TextMessage, []byte(tt.send)); err != nil {
				t.Fatalf("WriteMessage() error = %v", err)
			}
			msg := readMessage(t, conn)
			if msg.Type != WSTypeError {
				t.Fatalf("type = %q, want error", msg.Type)
			}
			payload, _ := msg.Payload.(map[string]any)
			if payload["message"] != tt.want {
				t.Errorf("message = %v, want %q", payload["message"], tt.want)
			}
		})
	}
}

func TestWebSocket_InvalidChannelQuery(t *testing.T) {
	srv := testServer(t, nil)

	rec := do(t, srv, "/api/v1/ws?channels=reading,rain", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHub_CloseAllOnShutdown(t *testing.T) {
	srv := testServer(t, nil)
	conn := dialHub(t, srv, "?channels=reading")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		srv.Hub().Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	if n := srv.Hub().ClientCount(); n != 0 {
		t.Errorf("ClientCount() = %d after shutdown, want 0", n)
	}
	//nolint:errcheck // Test deadline
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("connection still open after hub shutdown")
	}
}
