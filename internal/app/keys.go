package app

const leaderboardKey = "leaderboard"

func gameKey(gameID string) string {
	return "game:" + gameID
}

func gamesByUserKey(userID string) string {
	return "games_by_user:" + userID
}

func profileKey(userID string) string {
	return "profile:" + userID
}
