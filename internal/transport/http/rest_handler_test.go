package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"chaos-story-service/internal/domain"
)

func do(t *testing.T, h http.Handler, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if user != "" {
		req.Header.Set(headerUserID, user)
		req.Header.Set(headerUserName, user+" name")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRESTGameLifecycle(t *testing.T) {
	router := NewRouter(newTestService(), quiet)

	rec := do(t, router, http.MethodPost, "/v1/games", "owner", map[string]any{
		"title": "Heist", "premise": "A vault", "chaosLevel": 3,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status %d body %s", rec.Code, rec.Body)
	}
	var game domain.Game
	if err := json.NewDecoder(rec.Body).Decode(&game); err != nil {
		t.Fatalf("decode game: %v", err)
	}
	if game.OwnerDisplayName != "owner name" {
		t.Fatalf("expected display name from header, got %q", game.OwnerDisplayName)
	}

	rec = do(t, router, http.MethodPost, "/v1/games/"+game.ID+"/choices", "author", map[string]any{"choiceId": "choice3"})
	if rec.Code != http.StatusOK {
		t.Fatalf("choice: status %d body %s", rec.Code, rec.Body)
	}
	var choice choiceResponse
	_ = json.NewDecoder(rec.Body).Decode(&choice)
	if choice.State.CurrentSceneID != "scene_1" || len(choice.State.PlayerChoices) != 1 {
		t.Fatalf("unexpected game state %+v", choice.State)
	}

	rec = do(t, router, http.MethodPost, "/v1/games/"+game.ID+"/history/0/votes", "voter", map[string]any{"category": "mild"})
	if rec.Code != http.StatusOK {
		t.Fatalf("vote: status %d body %s", rec.Code, rec.Body)
	}

	rec = do(t, router, http.MethodGet, "/v1/users/author/profile", "", nil)
	var profile domain.UserChaosProfile
	_ = json.NewDecoder(rec.Body).Decode(&profile)
	if profile.TotalVotesReceived != 1 || profile.GlobalChaosScore != 3 {
		t.Fatalf("unexpected profile %+v", profile)
	}

	rec = do(t, router, http.MethodGet, "/v1/leaderboard", "", nil)
	var board struct {
		Entries []domain.UserChaosProfile `json:"entries"`
	}
	_ = json.NewDecoder(rec.Body).Decode(&board)
	if len(board.Entries) != 1 || board.Entries[0].UserID != "author" {
		t.Fatalf("unexpected leaderboard %+v", board.Entries)
	}

	rec = do(t, router, http.MethodGet, "/v1/users/owner/games", "", nil)
	var list struct {
		GameIDs []string `json:"gameIds"`
	}
	_ = json.NewDecoder(rec.Body).Decode(&list)
	if len(list.GameIDs) != 1 || list.GameIDs[0] != game.ID {
		t.Fatalf("unexpected game list %v", list.GameIDs)
	}

	if rec := do(t, router, http.MethodDelete, "/v1/games/"+game.ID, "voter", nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected forbidden delete, got %d", rec.Code)
	}
	if rec := do(t, router, http.MethodDelete, "/v1/games/"+game.ID, "owner", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("expected delete, got %d", rec.Code)
	}
	if rec := do(t, router, http.MethodGet, "/v1/games/"+game.ID, "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected not found after delete, got %d", rec.Code)
	}
}

func TestRESTErrorMapping(t *testing.T) {
	router := NewRouter(newTestService(), quiet)

	rec := do(t, router, http.MethodPost, "/v1/games", "owner", map[string]any{"title": "x", "premise": "y", "chaosLevel": 9})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected bad request, got %d", rec.Code)
	}
	var payload errorPayload
	_ = json.NewDecoder(rec.Body).Decode(&payload)
	if payload.Message != "chaos level must be between 1 and 5" {
		t.Fatalf("unexpected message %q", payload.Message)
	}

	rec = do(t, router, http.MethodPost, "/v1/games/nope/history/abc/votes", "voter", map[string]any{"category": "mild"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected bad request for index, got %d", rec.Code)
	}
	if rec := do(t, router, http.MethodGet, "/v1/games/nope", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected not found, got %d", rec.Code)
	}
	if rec := do(t, router, http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected healthz ok, got %d", rec.Code)
	}
}
