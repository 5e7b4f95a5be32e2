package http

import (
	"encoding/json"
	"net/http"

	"concept-battle-service/internal/app"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type WSHandler struct {
	service  *app.GameService
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

func NewWSHandler(service *app.GameService, logger zerolog.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	Answer      string `json:"answer"`
	ElapsedMs   int64  `json:"elapsedMs"`
	DisplayName string `json:"displayName"`
}

type topicPayload struct {
	Topic string `json:"topic"`
}

type advancePayload struct {
	RoundIndex *int `json:"roundIndex"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// ServeWS streams game snapshots to one participant and accepts their
// in-game actions over the same socket.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	gameID := r.URL.Query().Get("gameId")
	participantID := r.URL.Query().Get("participantId")
	if gameID == "" || participantID == "" {
		http.Error(w, "missing gameId or participantId", http.StatusBadRequest)
		return
	}

	updates, cancel, err := h.service.Subscribe(r.Context(), gameID)
	if err != nil {
		http.Error(w, err.Error(), StatusFor(err))
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Str("game_id", gameID).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// single writer; gorilla connections do not support concurrent writes
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug().Err(err).Str("game_id", gameID).Msg("ws write error")
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "state", Payload: update}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	fail := func(err error) outboundMessage[any] {
		return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error(), Status: StatusFor(err)}}
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		var reply outboundMessage[any]
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				reply = outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload", Status: http.StatusBadRequest}}
				break
			}
			result, err := h.service.SubmitAnswer(r.Context(), app.SubmitAnswerInput{
				GameID:        gameID,
				ParticipantID: participantID,
				DisplayName:   payload.DisplayName,
				Answer:        payload.Answer,
				ElapsedMs:     payload.ElapsedMs,
			})
			if err != nil {
				reply = fail(err)
				break
			}
			reply = outboundMessage[any]{Type: "answerResult", Payload: result}
		case "selectTopic":
			var payload topicPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				reply = outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid topic payload", Status: http.StatusBadRequest}}
				break
			}
			result, err := h.service.SelectTopic(r.Context(), gameID, participantID, payload.Topic)
			if err != nil {
				reply = fail(err)
				break
			}
			reply = outboundMessage[any]{Type: "topicSelected", Payload: result}
		case "advance":
			var payload advancePayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.RoundIndex == nil {
				reply = outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid advance payload", Status: http.StatusBadRequest}}
				break
			}
			result, err := h.service.AdvanceRound(r.Context(), gameID, *payload.RoundIndex)
			if err != nil {
				reply = fail(err)
				break
			}
			reply = outboundMessage[any]{Type: "advanced", Payload: result}
		default:
			reply = outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type", Status: http.StatusBadRequest}}
		}
		select {
		case send <- reply:
			continue
		case <-writerDone:
		}
		break
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}
