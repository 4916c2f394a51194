package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"chaos-story-service/internal/domain"
)

// GetUserProfile returns the chaos profile of userID, creating and storing
// an all-zero profile on first access.
func (s *ChaosService) GetUserProfile(ctx context.Context, userID, displayName string) (domain.UserChaosProfile, error) {
	if userID == "" {
		return domain.UserChaosProfile{}, domain.Invalid("userId", "a user is required")
	}
	profile, ok, err := s.loadProfile(ctx, userID)
	if err != nil || ok {
		return profile, err
	}

	release, err := s.lock(ctx, profileKey(userID))
	if err != nil {
		return domain.UserChaosProfile{}, err
	}
	defer release()
	ctx = context.WithoutCancel(ctx)

	// another writer may have created it while we waited
	profile, ok, err = s.loadProfile(ctx, userID)
	if err != nil || ok {
		return profile, err
	}
	profile = domain.NewUserChaosProfile(userID, s.displayName(ctx, userID, displayName), s.now())
	doc, err := setDoc(profileKey(userID), profile)
	if err != nil {
		return domain.UserChaosProfile{}, err
	}
	if err := s.commit(ctx, []Mutation{doc}); err != nil {
		return domain.UserChaosProfile{}, fmt.Errorf("create profile: %w", err)
	}
	return profile, nil
}

// GetLeaderboard returns the ranked profiles, empty when nothing was voted yet.
func (s *ChaosService) GetLeaderboard(ctx context.Context) ([]domain.UserChaosProfile, error) {
	return s.loadLeaderboard(ctx)
}

func (s *ChaosService) loadProfile(ctx context.Context, userID string) (domain.UserChaosProfile, bool, error) {
	var profile domain.UserChaosProfile
	raw, ok, err := s.store.Get(ctx, profileKey(userID))
	if err != nil || !ok {
		if err != nil {
			err = fmt.Errorf("load profile %s: %w", userID, err)
		}
		return profile, false, err
	}
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		return profile, false, fmt.Errorf("decode profile %s: %w", userID, err)
	}
	return profile, true, nil
}

// authorProfile loads the profile receiving a vote on entry, starting a new
// one when the author has none yet. Callers hold the profile lock.
func (s *ChaosService) authorProfile(ctx context.Context, entry *domain.HistoryEntry, now time.Time) (domain.UserChaosProfile, error) {
	profile, ok, err := s.loadProfile(ctx, entry.AuthorUserID)
	if err != nil {
		return domain.UserChaosProfile{}, err
	}
	if !ok {
		profile = domain.NewUserChaosProfile(entry.AuthorUserID,
			s.displayName(ctx, entry.AuthorUserID, entry.AuthorDisplayName), now)
	}
	return profile, nil
}

func (s *ChaosService) loadLeaderboard(ctx context.Context) ([]domain.UserChaosProfile, error) {
	board := []domain.UserChaosProfile{}
	if err := s.loadDoc(ctx, leaderboardKey, &board); err != nil {
		return nil, err
	}
	if board == nil {
		board = []domain.UserChaosProfile{}
	}
	return board, nil
}
