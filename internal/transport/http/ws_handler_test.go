package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"concept-battle-service/internal/app"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

func TestWebSocketBattleFlow(t *testing.T) {
	service := newTestService()
	ctx := context.Background()
	game, err := service.CreateGame(ctx, app.CreateGameInput{CreatorID: "p1", DisplayName: "Alice"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := service.JoinGame(ctx, game.ID, "p2", "Bob"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := service.StartGame(ctx, game.ID, "p1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	wsHandler := NewWSHandler(service, zerolog.Nop())
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws?gameId=" + game.ID + "&participantId=p1"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Expect current state first.
	_, state := readNext(conn, t, "state")
	if state["status"] != "topic_selection" {
		t.Fatalf("expected topic_selection snapshot, got %v", state["status"])
	}

	send(t, conn, "selectTopic", map[string]any{"topic": "Algebra"})
	readUntil(conn, t, "topicSelected")

	send(t, conn, "answer", map[string]any{"answer": "4", "elapsedMs": 0})
	result := readUntil(conn, t, "answerResult")
	if result["score"] != float64(100) {
		t.Fatalf("expected 100 points, got %v", result["score"])
	}

	send(t, conn, "answer", map[string]any{"answer": "4"})
	failure := readUntil(conn, t, "error")
	if failure["status"] != float64(http.StatusConflict) {
		t.Fatalf("expected conflict for second answer, got %v", failure)
	}

	send(t, conn, "advance", nil)
	failure = readUntil(conn, t, "error")
	if failure["status"] != float64(http.StatusBadRequest) {
		t.Fatalf("expected bad request for advance without round index, got %v", failure)
	}

	send(t, conn, "advance", map[string]any{"roundIndex": 0})
	advanced := readUntil(conn, t, "advanced")
	if advanced["status"] != "topic_selection" || advanced["nextRoundIndex"] != float64(1) {
		t.Fatalf("unexpected advance result %v", advanced)
	}

	// a repeated advance for round 0 must not touch round 1
	if _, err := service.SelectTopic(ctx, game.ID, "p2", "Physics"); err != nil {
		t.Fatalf("select round 1: %v", err)
	}
	send(t, conn, "advance", map[string]any{"roundIndex": 0})
	advanced = readUntil(conn, t, "advanced")
	if advanced["status"] != "in_progress" || advanced["nextRoundIndex"] != float64(1) {
		t.Fatalf("expected stale advance to be a no-op, got %v", advanced)
	}

	send(t, conn, "dance", nil)
	readUntil(conn, t, "error")
}

func TestWebSocketRejectsBadRequests(t *testing.T) {
	service := newTestService()
	server := httptest.NewServer(http.HandlerFunc(NewWSHandler(service, zerolog.Nop()).ServeWS))
	defer server.Close()

	resp, err := http.Get(server.URL + "/ws?gameId=g1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without participant, got %d", resp.StatusCode)
	}

	resp, err = http.Get(server.URL + "/ws?gameId=missing&participantId=p1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown game, got %d", resp.StatusCode)
	}
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	msg := map[string]any{"type": typ}
	if payload != nil {
		msg["payload"] = payload
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, msg.Type)
	}
	payload := map[string]any{}
	_ = json.Unmarshal(msg.Payload, &payload)
	return msg.Type, payload
}

// readUntil skips interleaved state pushes.
func readUntil(conn *websocket.Conn, t *testing.T, expect string) map[string]any {
	t.Helper()
	for i := 0; i < 20; i++ {
		typ, payload := readNext(conn, t, "")
		if typ == expect {
			return payload
		}
		if typ != "state" {
			t.Fatalf("expected %s, got %s %v", expect, typ, payload)
		}
	}
	t.Fatalf("never received %s", expect)
	return nil
}
