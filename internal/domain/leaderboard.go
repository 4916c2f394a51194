package domain

import "sort"

// DefaultLeaderboardSize bounds the persisted ranking.
const DefaultLeaderboardSize = 100

// SortLeaderboard orders entries by score, then votes received, then user id.
func SortLeaderboard(entries []UserChaosProfile) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].GlobalChaosScore != entries[j].GlobalChaosScore {
			return entries[i].GlobalChaosScore > entries[j].GlobalChaosScore
		}
		if entries[i].TotalVotesReceived != entries[j].TotalVotesReceived {
			return entries[i].TotalVotesReceived > entries[j].TotalVotesReceived
		}
		return entries[i].UserID < entries[j].UserID
	})
}

// RankProfile replaces any entry for profile.UserID with profile, re-sorts
// and truncates to limit. A limit of zero or less keeps every entry.
func RankProfile(entries []UserChaosProfile, profile UserChaosProfile, limit int) []UserChaosProfile {
	ranked := make([]UserChaosProfile, 0, len(entries)+1)
	for _, e := range entries {
		if e.UserID != profile.UserID {
			ranked = append(ranked, e)
		}
	}
	ranked = append(ranked, profile)
	SortLeaderboard(ranked)
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
