package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"chaos-story-service/internal/app"
	"chaos-story-service/internal/domain"
)

// Acting user headers; authentication happens upstream.
const (
	headerUserID   = "X-User-ID"
	headerUserName = "X-User-Name"
)

// GameHandler exposes the engine over REST.
type GameHandler struct {
	service *app.ChaosService
	log     *slog.Logger
}

func NewGameHandler(service *app.ChaosService, logger *slog.Logger) *GameHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GameHandler{service: service, log: logger}
}

type createGameBody struct {
	Title      string `json:"title"`
	Premise    string `json:"premise"`
	ChaosLevel int    `json:"chaosLevel"`
}

type choiceBody struct {
	ChoiceID string `json:"choiceId"`
}

type choiceResponse struct {
	Scene domain.Scene     `json:"scene"`
	State domain.GameState `json:"gameState"`
	Game  domain.Game      `json:"game"`
}

type voteBody struct {
	Category string `json:"category"`
}

type voteResponse struct {
	Entry        domain.HistoryEntry     `json:"entry"`
	VoterProfile domain.UserChaosProfile `json:"voterProfile"`
}

// CreateGame handles POST /v1/games
func (h *GameHandler) CreateGame(w http.ResponseWriter, r *http.Request) {
	var body createGameBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, domain.Invalid("body", "invalid request body"))
		return
	}
	game, err := h.service.CreateGame(r.Context(), app.CreateGameRequest{
		Title:            body.Title,
		Premise:          body.Premise,
		ChaosLevel:       body.ChaosLevel,
		OwnerUserID:      r.Header.Get(headerUserID),
		OwnerDisplayName: r.Header.Get(headerUserName),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, game)
}

// GetGame handles GET /v1/games/{id}
func (h *GameHandler) GetGame(w http.ResponseWriter, r *http.Request) {
	game, err := h.service.GetGame(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, game)
}

// ResolveChoice handles POST /v1/games/{id}/choices
func (h *GameHandler) ResolveChoice(w http.ResponseWriter, r *http.Request) {
	var body choiceBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, domain.Invalid("body", "invalid request body"))
		return
	}
	scene, game, err := h.service.ResolveChoice(r.Context(), mux.Vars(r)["id"], body.ChoiceID,
		r.Header.Get(headerUserID), r.Header.Get(headerUserName))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, choiceResponse{Scene: scene, State: game.State(), Game: game})
}

// SubmitVote handles POST /v1/games/{id}/history/{index}/votes
func (h *GameHandler) SubmitVote(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		writeError(w, domain.Invalid("index", "history index must be a number"))
		return
	}
	var body voteBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, domain.Invalid("body", "invalid request body"))
		return
	}
	entry, profile, err := h.service.SubmitVote(r.Context(), app.VoteRequest{
		GameID:           mux.Vars(r)["id"],
		HistoryIndex:     index,
		VoterUserID:      r.Header.Get(headerUserID),
		VoterDisplayName: r.Header.Get(headerUserName),
		Category:         body.Category,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, voteResponse{Entry: entry, VoterProfile: profile})
}

// DeleteGame handles DELETE /v1/games/{id}
func (h *GameHandler) DeleteGame(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteGame(r.Context(), mux.Vars(r)["id"], r.Header.Get(headerUserID)); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetUserProfile handles GET /v1/users/{id}/profile
func (h *GameHandler) GetUserProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.service.GetUserProfile(r.Context(), mux.Vars(r)["id"], "")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// ListUserGames handles GET /v1/users/{id}/games
func (h *GameHandler) ListUserGames(w http.ResponseWriter, r *http.Request) {
	ids, err := h.service.ListUserGames(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"gameIds": ids})
}

// GetLeaderboard handles GET /v1/leaderboard
func (h *GameHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	board, err := h.service.GetLeaderboard(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": board})
}

func (h *GameHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if status := statusFor(err); status >= http.StatusInternalServerError {
		h.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeError(w, err)
}
