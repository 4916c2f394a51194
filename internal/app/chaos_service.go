package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"chaos-story-service/internal/domain"
	"chaos-story-service/internal/scene"
)

// Options configure a ChaosService. Zero values pick defaults.
type Options struct {
	LeaderboardSize int
	Clock           func() time.Time
	Logger          *slog.Logger
	Hub             *Hub
}

// ChaosService contains the narrative engine use cases: creating games,
// resolving choices and aggregating chaos votes.
type ChaosService struct {
	store    Store
	locks    Locker
	scenes   SceneBuilder
	identity IdentityProvider
	hub      *Hub
	lbSize   int
	now      func() time.Time
	log      *slog.Logger
}

func NewChaosService(store Store, locks Locker, scenes SceneBuilder, identity IdentityProvider, opts Options) *ChaosService {
	if identity == nil {
		identity = noIdentity{}
	}
	if opts.LeaderboardSize <= 0 {
		opts.LeaderboardSize = domain.DefaultLeaderboardSize
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Hub == nil {
		opts.Hub = NewHub()
	}
	return &ChaosService{
		store:    store,
		locks:    locks,
		scenes:   scenes,
		identity: identity,
		hub:      opts.Hub,
		lbSize:   opts.LeaderboardSize,
		now:      func() time.Time { return opts.Clock().UTC() },
		log:      opts.Logger,
	}
}

// CreateGameRequest is the input of CreateGame.
type CreateGameRequest struct {
	Title            string
	Premise          string
	ChaosLevel       int
	OwnerUserID      string
	OwnerDisplayName string
}

// CreateGame validates req, asks for an opening scene and persists the new game.
func (s *ChaosService) CreateGame(ctx context.Context, req CreateGameRequest) (domain.Game, error) {
	title := strings.TrimSpace(req.Title)
	premise := strings.TrimSpace(req.Premise)
	switch {
	case title == "":
		return domain.Game{}, domain.Invalid("title", "a title is required")
	case premise == "":
		return domain.Game{}, domain.Invalid("premise", "a premise is required")
	case req.OwnerUserID == "":
		return domain.Game{}, domain.Invalid("ownerUserId", "an owner is required")
	case req.ChaosLevel < domain.MinChaosLevel || req.ChaosLevel > domain.MaxChaosLevel:
		return domain.Game{}, domain.Invalid("chaosLevel",
			fmt.Sprintf("chaos level must be between %d and %d", domain.MinChaosLevel, domain.MaxChaosLevel))
	}
	ctx = context.WithoutCancel(ctx)

	opening := s.scenes.Opening(ctx, title, premise, req.ChaosLevel)
	now := s.now()
	tree, path := domain.NewStoryTree(opening, now)
	game := domain.Game{
		SchemaVersion:    domain.CurrentSchemaVersion,
		ID:               newGameID(now),
		Title:            title,
		Premise:          premise,
		ChaosLevel:       req.ChaosLevel,
		CreatedAt:        now,
		UpdatedAt:        now,
		OwnerUserID:      req.OwnerUserID,
		OwnerDisplayName: s.displayName(ctx, req.OwnerUserID, req.OwnerDisplayName),
		CurrentScene:     opening,
		History:          []domain.HistoryEntry{},
		StoryTree:        tree,
		ActivePath:       path,
	}

	release, err := s.lock(ctx, gamesByUserKey(game.OwnerUserID))
	if err != nil {
		return domain.Game{}, err
	}
	defer release()

	ids, err := s.loadGameIDs(ctx, game.OwnerUserID)
	if err != nil {
		return domain.Game{}, err
	}
	gameDoc, err := setDoc(gameKey(game.ID), game)
	if err != nil {
		return domain.Game{}, err
	}
	listDoc, err := setDoc(gamesByUserKey(game.OwnerUserID), append(ids, game.ID))
	if err != nil {
		return domain.Game{}, err
	}
	if err := s.commit(ctx, []Mutation{gameDoc, listDoc}); err != nil {
		return domain.Game{}, fmt.Errorf("create game: %w", err)
	}

	s.log.Info("game created", "game", game.ID, "owner", game.OwnerUserID, "chaos_level", game.ChaosLevel)
	return game, nil
}

// ResolveChoice records the choice on the current scene, advances the story
// and returns the new scene together with the updated game.
func (s *ChaosService) ResolveChoice(ctx context.Context, gameID, choiceID, userID, displayName string) (domain.Scene, domain.Game, error) {
	if choiceID == "" {
		return domain.Scene{}, domain.Game{}, domain.Invalid("choiceId", "a choice is required")
	}
	if userID == "" {
		return domain.Scene{}, domain.Game{}, domain.Invalid("userId", "a user is required")
	}

	release, err := s.lock(ctx, gameKey(gameID))
	if err != nil {
		return domain.Scene{}, domain.Game{}, err
	}
	defer release()
	// Callers may give up while waiting for the lock, not once it is held.
	ctx = context.WithoutCancel(ctx)

	game, err := s.loadGame(ctx, gameID)
	if err != nil {
		return domain.Scene{}, domain.Game{}, err
	}
	if game.CurrentScene.IsEnding {
		return domain.Scene{}, domain.Game{}, domain.ErrGameEnded
	}
	choice, ok := game.CurrentScene.Choice(choiceID)
	if !ok {
		return domain.Scene{}, domain.Game{}, domain.ErrInvalidChoice
	}

	now := s.now()
	current := game.CurrentScene
	history := append(slices.Clip(game.History), domain.HistoryEntry{
		SceneID:           current.ID,
		SceneTitle:        current.Title,
		SceneDescription:  current.Description,
		ChoiceID:          choice.ID,
		ChoiceText:        choice.Text,
		Timestamp:         now,
		AuthorUserID:      userID,
		AuthorDisplayName: s.displayName(ctx, userID, displayName),
		Votes:             domain.NewChaosVotes(),
	})
	game.History = history

	next := s.scenes.Continue(ctx, scene.Continuation{
		History:     game.HistoryTexts(),
		Previous:    current,
		ChosenText:  choice.Text,
		ChaosLevel:  game.ChaosLevel,
		SceneNumber: len(history),
	})

	path, err := game.StoryTree.AppendChoice(game.ActivePath, choice.ID, choice.Text, next, userID, now)
	if err != nil {
		return domain.Scene{}, domain.Game{}, err
	}
	game.ActivePath = path
	game.CurrentScene = next
	game.UpdatedAt = now
	game.SchemaVersion = domain.CurrentSchemaVersion

	doc, err := setDoc(gameKey(game.ID), game)
	if err != nil {
		return domain.Scene{}, domain.Game{}, err
	}
	if err := s.commit(ctx, []Mutation{doc}); err != nil {
		return domain.Scene{}, domain.Game{}, fmt.Errorf("resolve choice: %w", err)
	}
	s.hub.publish(game)

	s.log.Info("choice resolved", "game", game.ID, "choice", choice.ID, "scene", next.ID, "ending", next.IsEnding)
	return next, game, nil
}

// VoteRequest is the input of SubmitVote.
type VoteRequest struct {
	GameID           string
	HistoryIndex     int
	VoterUserID      string
	VoterDisplayName string
	Category         string
}

// SubmitVote casts or switches a vote on a resolved choice and propagates the
// result to the author's profile and the leaderboard. It returns the updated
// history entry and the voter's own profile.
func (s *ChaosService) SubmitVote(ctx context.Context, req VoteRequest) (domain.HistoryEntry, domain.UserChaosProfile, error) {
	cat, err := domain.ParseVoteCategory(req.Category)
	if err != nil {
		return domain.HistoryEntry{}, domain.UserChaosProfile{}, err
	}
	if req.VoterUserID == "" {
		return domain.HistoryEntry{}, domain.UserChaosProfile{}, domain.Invalid("voterUserId", "a voter is required")
	}

	entry, err := s.castVote(ctx, req, cat)
	if err != nil {
		return domain.HistoryEntry{}, domain.UserChaosProfile{}, err
	}

	// Every lock is released by now; the voter profile takes its own.
	voter, err := s.GetUserProfile(context.WithoutCancel(ctx), req.VoterUserID, req.VoterDisplayName)
	if err != nil {
		// The vote is already stored, so report it and hand back a blank profile.
		s.log.Warn("voter profile unavailable", "user", req.VoterUserID, "error", err)
		voter = domain.NewUserChaosProfile(req.VoterUserID, strings.TrimSpace(req.VoterDisplayName), s.now())
	}
	return entry, voter, nil
}

func (s *ChaosService) castVote(ctx context.Context, req VoteRequest, cat domain.VoteCategory) (domain.HistoryEntry, error) {
	release, err := s.lock(ctx, gameKey(req.GameID))
	if err != nil {
		return domain.HistoryEntry{}, err
	}
	defer release()
	ctx = context.WithoutCancel(ctx)

	game, err := s.loadGame(ctx, req.GameID)
	if err != nil {
		return domain.HistoryEntry{}, err
	}
	if req.HistoryIndex < 0 || req.HistoryIndex >= len(game.History) {
		return domain.HistoryEntry{}, domain.ErrHistoryEntryNotFound
	}
	entry := &game.History[req.HistoryIndex]
	if entry.AuthorUserID == req.VoterUserID {
		return domain.HistoryEntry{}, domain.ErrSelfVote
	}

	now := s.now()
	previous, hadPrevious := entry.Votes.Cast(req.VoterUserID, cat)
	entry.ChaosScore = entry.Votes.Score()
	game.UpdatedAt = now
	game.SchemaVersion = domain.CurrentSchemaVersion

	gameDoc, err := setDoc(gameKey(game.ID), game)
	if err != nil {
		return domain.HistoryEntry{}, err
	}
	mutations := []Mutation{gameDoc}

	if entry.AuthorUserID != "" {
		releaseProfile, err := s.lock(ctx, profileKey(entry.AuthorUserID))
		if err != nil {
			return domain.HistoryEntry{}, err
		}
		defer releaseProfile()
		releaseBoard, err := s.lock(ctx, leaderboardKey)
		if err != nil {
			return domain.HistoryEntry{}, err
		}
		defer releaseBoard()

		author, err := s.authorProfile(ctx, entry, now)
		if err != nil {
			return domain.HistoryEntry{}, err
		}
		author.ReceiveVote(cat, previous, hadPrevious, now)

		board, err := s.loadLeaderboard(ctx)
		if err != nil {
			return domain.HistoryEntry{}, err
		}
		board = domain.RankProfile(board, author, s.lbSize)

		profileDoc, err := setDoc(profileKey(author.UserID), author)
		if err != nil {
			return domain.HistoryEntry{}, err
		}
		boardDoc, err := setDoc(leaderboardKey, board)
		if err != nil {
			return domain.HistoryEntry{}, err
		}
		mutations = append(mutations, profileDoc, boardDoc)
	}

	if err := s.commit(ctx, mutations); err != nil {
		return domain.HistoryEntry{}, fmt.Errorf("submit vote: %w", err)
	}
	s.hub.publish(game)

	s.log.Info("vote recorded", "game", game.ID, "index", req.HistoryIndex, "category", cat, "score", entry.ChaosScore)
	return *entry, nil
}

// GetGame returns the stored game without taking any lock.
func (s *ChaosService) GetGame(ctx context.Context, gameID string) (domain.Game, error) {
	return s.loadGame(ctx, gameID)
}

// ListUserGames returns the ids of games owned by userID, oldest first.
func (s *ChaosService) ListUserGames(ctx context.Context, userID string) ([]string, error) {
	return s.loadGameIDs(ctx, userID)
}

// DeleteGame removes a game and its entry in the owner's list. Only the
// owner may delete a game; profiles keep the votes already received.
func (s *ChaosService) DeleteGame(ctx context.Context, gameID, userID string) error {
	release, err := s.lock(ctx, gameKey(gameID))
	if err != nil {
		return err
	}
	defer release()
	ctx = context.WithoutCancel(ctx)

	raw, ok, err := s.store.Get(ctx, gameKey(gameID))
	if err != nil {
		return fmt.Errorf("load game %s: %w", gameID, err)
	}
	if !ok {
		return domain.ErrGameNotFound
	}
	game, _, err := domain.DecodeGame([]byte(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrGameUnavailable, err)
	}
	if game.OwnerUserID != userID {
		return domain.ErrForbidden
	}

	releaseList, err := s.lock(ctx, gamesByUserKey(game.OwnerUserID))
	if err != nil {
		return err
	}
	defer releaseList()

	ids, err := s.loadGameIDs(ctx, game.OwnerUserID)
	if err != nil {
		return err
	}
	ids = slices.DeleteFunc(ids, func(id string) bool { return id == gameID })
	listDoc, err := setDoc(gamesByUserKey(game.OwnerUserID), ids)
	if err != nil {
		return err
	}
	if err := s.commit(ctx, []Mutation{{Key: gameKey(gameID), Delete: true}, listDoc}); err != nil {
		return fmt.Errorf("delete game: %w", err)
	}
	s.hub.drop(gameID)

	s.log.Info("game deleted", "game", gameID, "owner", userID)
	return nil
}

// Subscribe returns a channel that receives the game after every change,
// starting with its current state. The caller must invoke cancel.
func (s *ChaosService) Subscribe(ctx context.Context, gameID string) (<-chan domain.Game, func(), error) {
	game, err := s.loadGame(ctx, gameID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.hub.subscribe(gameID, game)
	return ch, cancel, nil
}

func (s *ChaosService) loadGame(ctx context.Context, gameID string) (domain.Game, error) {
	raw, ok, err := s.store.Get(ctx, gameKey(gameID))
	if err != nil {
		return domain.Game{}, fmt.Errorf("load game %s: %w", gameID, err)
	}
	if !ok {
		return domain.Game{}, domain.ErrGameNotFound
	}
	game, migrated, err := domain.DecodeGame([]byte(raw))
	if err != nil {
		s.log.Error("unreadable game document", "game", gameID, "error", err)
		return domain.Game{}, fmt.Errorf("%w: %v", domain.ErrGameUnavailable, err)
	}
	if migrated {
		s.log.Info("legacy game migrated on load", "game", gameID)
	}
	if err := game.Validate(); err != nil {
		s.log.Error("inconsistent story tree", "game", gameID, "error", err)
		return domain.Game{}, err
	}
	return game, nil
}

func (s *ChaosService) loadGameIDs(ctx context.Context, userID string) ([]string, error) {
	ids := []string{}
	if err := s.loadDoc(ctx, gamesByUserKey(userID), &ids); err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// loadDoc decodes key into v and leaves v untouched when the key is absent.
func (s *ChaosService) loadDoc(ctx context.Context, key string, v any) error {
	raw, ok, err := s.store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("load %s: %w", key, err)
	}
	if !ok {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (s *ChaosService) lock(ctx context.Context, key string) (func(), error) {
	release, err := s.locks.Acquire(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrBusy) {
			err = fmt.Errorf("lock %s: %w", key, err)
		}
		return nil, err
	}
	return release, nil
}

func (s *ChaosService) displayName(ctx context.Context, userID, given string) string {
	if name := strings.TrimSpace(given); name != "" {
		return name
	}
	name, _ := s.identity.DisplayNameOf(ctx, userID)
	return name
}

func newGameID(now time.Time) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("chaos_%d_%s", now.UnixMilli(), random[:12])
}
