package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"chaos-story-service/internal/app"
	"chaos-story-service/internal/domain"
)

type WSHandler struct {
	service  *app.ChaosService
	log      *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.ChaosService, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		service: service,
		log:     logger,
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

type wsVotePayload struct {
	HistoryIndex int    `json:"historyIndex"`
	Category     string `json:"category"`
}

type choiceResult struct {
	Scene domain.Scene     `json:"scene"`
	State domain.GameState `json:"gameState"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

func errorMessage(err error) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: domain.PublicMessage(err)}}
}

// ServeWS upgrades HTTP requests to websockets, streams game snapshots and
// accepts choice and vote messages from the player.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	gameID := r.URL.Query().Get("gameId")
	userID := r.URL.Query().Get("userId")
	displayName := r.URL.Query().Get("name")
	if gameID == "" || userID == "" {
		http.Error(w, "missing gameId or userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	updates, cancel, err := h.service.Subscribe(r.Context(), gameID)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err))
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug("ws write failed", "game", gameID, "error", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case game, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "game", Payload: game}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "choice":
			var payload choiceBody
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errorMessage(domain.Invalid("payload", "invalid choice payload"))
				continue
			}
			scene, game, err := h.service.ResolveChoice(r.Context(), gameID, payload.ChoiceID, userID, displayName)
			if err != nil {
				send <- errorMessage(err)
				continue
			}
			send <- outboundMessage[any]{Type: "choiceResult", Payload: choiceResult{Scene: scene, State: game.State()}}
		case "vote":
			var payload wsVotePayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errorMessage(domain.Invalid("payload", "invalid vote payload"))
				continue
			}
			entry, profile, err := h.service.SubmitVote(r.Context(), app.VoteRequest{
				GameID:           gameID,
				HistoryIndex:     payload.HistoryIndex,
				VoterUserID:      userID,
				VoterDisplayName: displayName,
				Category:         payload.Category,
			})
			if err != nil {
				send <- errorMessage(err)
				continue
			}
			send <- outboundMessage[any]{Type: "voteResult", Payload: voteResponse{Entry: entry, VoterProfile: profile}}
		default:
			send <- errorMessage(domain.Invalid("type", "unsupported message type"))
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}
