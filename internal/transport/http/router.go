package http

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"chaos-story-service/internal/app"
)

// NewRouter wires the REST and websocket handlers.
func NewRouter(service *app.ChaosService, logger *slog.Logger) *mux.Router {
	games := NewGameHandler(service, logger)
	ws := NewWSHandler(service, logger)

	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.HandleFunc("/ws", ws.ServeWS)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/games", games.CreateGame).Methods(http.MethodPost)
	v1.HandleFunc("/games/{id}", games.GetGame).Methods(http.MethodGet)
	v1.HandleFunc("/games/{id}", games.DeleteGame).Methods(http.MethodDelete)
	v1.HandleFunc("/games/{id}/choices", games.ResolveChoice).Methods(http.MethodPost)
	v1.HandleFunc("/games/{id}/history/{index}/votes", games.SubmitVote).Methods(http.MethodPost)
	v1.HandleFunc("/users/{id}/profile", games.GetUserProfile).Methods(http.MethodGet)
	v1.HandleFunc("/users/{id}/games", games.ListUserGames).Methods(http.MethodGet)
	v1.HandleFunc("/leaderboard", games.GetLeaderboard).Methods(http.MethodGet)
	return r
}
