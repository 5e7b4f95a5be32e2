package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"concept-battle-service/internal/app"
	"concept-battle-service/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// API serves the REST surface of the game service.
type API struct {
	service *app.GameService
	ws      *WSHandler
	logger  zerolog.Logger
}

func NewAPI(service *app.GameService, ws *WSHandler, logger zerolog.Logger) *API {
	return &API{service: service, ws: ws, logger: logger}
}

// APIResponse is the envelope of every REST reply.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func (a *API) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(a.requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	if a.ws != nil {
		r.Get("/ws", a.ws.ServeWS)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/topics", a.ListTopics)

		r.Route("/games", func(r chi.Router) {
			r.Post("/", a.CreateGame)
			r.Get("/", a.ListGames)

			r.Route("/{gameID}", func(r chi.Router) {
				r.Get("/", a.GetGame)
				r.Post("/join", a.JoinGame)
				r.Post("/start", a.StartGame)
				r.Post("/topic", a.SelectTopic)
				r.Post("/answers", a.SubmitAnswer)
				r.Post("/advance", a.AdvanceRound)
			})
		})
	})
	return r
}

func (a *API) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		if r.URL.Path == "/ws" {
			return
		}
		a.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("dur", time.Since(start)).
			Msg("http")
	})
}

type createGameRequest struct {
	CommunityID string `json:"communityId"`
	CreatorID   string `json:"creatorId"`
	DisplayName string `json:"displayName"`
}

func (a *API) CreateGame(w http.ResponseWriter, r *http.Request) {
	var req createGameRequest
	if !a.decode(w, r, &req) {
		return
	}
	game, err := a.service.CreateGame(r.Context(), app.CreateGameInput{
		CommunityID: req.CommunityID,
		CreatorID:   req.CreatorID,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, APIResponse{Success: true, Data: game})
}

func (a *API) ListGames(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	games, err := a.service.ListGames(r.Context(), r.URL.Query().Get("communityId"), limit)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeSuccess(w, games)
}

func (a *API) GetGame(w http.ResponseWriter, r *http.Request) {
	game, err := a.service.GetGame(r.Context(), chi.URLParam(r, "gameID"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeSuccess(w, game)
}

type joinRequest struct {
	ParticipantID string `json:"participantId"`
	DisplayName   string `json:"displayName"`
}

func (a *API) JoinGame(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if !a.decode(w, r, &req) {
		return
	}
	game, err := a.service.JoinGame(r.Context(), chi.URLParam(r, "gameID"), req.ParticipantID, req.DisplayName)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeSuccess(w, game)
}

type startRequest struct {
	RequesterID string `json:"requesterId"`
}

func (a *API) StartGame(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if !a.decode(w, r, &req) {
		return
	}
	result, err := a.service.StartGame(r.Context(), chi.URLParam(r, "gameID"), req.RequesterID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeSuccess(w, result)
}

type topicRequest struct {
	ParticipantID string `json:"participantId"`
	Topic         string `json:"topic"`
}

func (a *API) SelectTopic(w http.ResponseWriter, r *http.Request) {
	var req topicRequest
	if !a.decode(w, r, &req) {
		return
	}
	result, err := a.service.SelectTopic(r.Context(), chi.URLParam(r, "gameID"), req.ParticipantID, req.Topic)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeSuccess(w, result)
}

type answerRequest struct {
	ParticipantID string `json:"participantId"`
	DisplayName   string `json:"displayName"`
	Answer        string `json:"answer"`
	ElapsedMs     int64  `json:"elapsedMs"`
}

func (a *API) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if !a.decode(w, r, &req) {
		return
	}
	result, err := a.service.SubmitAnswer(r.Context(), app.SubmitAnswerInput{
		GameID:        chi.URLParam(r, "gameID"),
		ParticipantID: req.ParticipantID,
		DisplayName:   req.DisplayName,
		Answer:        req.Answer,
		ElapsedMs:     req.ElapsedMs,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeSuccess(w, result)
}

type advanceRequest struct {
	RoundIndex *int `json:"roundIndex"`
}

// AdvanceRound requires the index of the round the caller saw as current.
func (a *API) AdvanceRound(w http.ResponseWriter, r *http.Request) {
	var req advanceRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.RoundIndex == nil {
		a.writeError(w, fmt.Errorf("%w: roundIndex is required", domain.ErrInvalidInput))
		return
	}
	result, err := a.service.AdvanceRound(r.Context(), chi.URLParam(r, "gameID"), *req.RoundIndex)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeSuccess(w, result)
}

func (a *API) ListTopics(w http.ResponseWriter, r *http.Request) {
	topics, err := a.service.Topics(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeSuccess(w, topics)
}

// decode reads a JSON body; an empty body is accepted as zero values.
func (a *API) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		a.writeJSON(w, http.StatusBadRequest, APIResponse{Success: false, Error: "invalid request body"})
		return false
	}
	return true
}

func (a *API) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		a.logger.Error().Err(err).Msg("failed to encode response")
	}
}

func (a *API) writeSuccess(w http.ResponseWriter, data interface{}) {
	a.writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: data})
}

func (a *API) writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		a.logger.Error().Err(err).Msg("request failed")
	}
	a.writeJSON(w, status, APIResponse{Success: false, Error: err.Error()})
}

// StatusFor maps a domain error kind to an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrCapacity):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
