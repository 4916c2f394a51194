package domain

import (
	"fmt"
	"time"
)

// MinChaosLevel and MaxChaosLevel bound the chaos level of a game.
const (
	MinChaosLevel = 1
	MaxChaosLevel = 5
)

// ChoicesPerScene is the number of choices every non-ending scene offers.
const ChoicesPerScene = 4

// GameChoice is one option of a scene. IDs are unique within their scene only.
type GameChoice struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Scene is one narrative beat. Non-ending scenes carry exactly four choices.
type Scene struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Choices     []GameChoice `json:"choices"`
	IsEnding    bool         `json:"isEnding"`
}

// Choice looks up a choice of the scene by id.
func (s Scene) Choice(id string) (GameChoice, bool) {
	for _, c := range s.Choices {
		if c.ID == id {
			return c, true
		}
	}
	return GameChoice{}, false
}

// HistoryEntry records one resolved choice and the votes it collected.
type HistoryEntry struct {
	SceneID           string     `json:"sceneId"`
	SceneTitle        string     `json:"sceneTitle"`
	SceneDescription  string     `json:"sceneDescription"`
	ChoiceID          string     `json:"choiceId"`
	ChoiceText        string     `json:"choiceText"`
	Timestamp         time.Time  `json:"timestamp"`
	AuthorUserID      string     `json:"authorUserId"`
	AuthorDisplayName string     `json:"authorDisplayName,omitempty"`
	Votes             ChaosVotes `json:"votes"`
	ChaosScore        float64    `json:"chaosScore"`
}

// Game is the aggregate persisted under game:{id}.
type Game struct {
	SchemaVersion    int            `json:"schemaVersion"`
	ID               string         `json:"id"`
	Title            string         `json:"title"`
	Premise          string         `json:"premise"`
	ChaosLevel       int            `json:"chaosLevel"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
	OwnerUserID      string         `json:"ownerUserId"`
	OwnerDisplayName string         `json:"ownerDisplayName,omitempty"`
	CurrentScene     Scene          `json:"currentScene"`
	History          []HistoryEntry `json:"history"`
	StoryTree        *StoryTree     `json:"storyTree"`
	ActivePath       []string       `json:"activePath"`
}

// Validate checks the tree invariants and that the current scene is the one
// referenced by the active leaf.
func (g Game) Validate() error {
	if g.StoryTree == nil {
		return fmt.Errorf("%w: game %s has no story tree", ErrInvalidPath, g.ID)
	}
	leaf, err := g.StoryTree.Validate(g.ActivePath)
	if err != nil {
		return err
	}
	if leaf.SceneID != g.CurrentScene.ID {
		return fmt.Errorf("%w: active leaf %s references scene %s, current scene is %s",
			ErrInvalidPath, leaf.ID, leaf.SceneID, g.CurrentScene.ID)
	}
	return nil
}

// HistoryTexts returns the chosen texts in chronological order.
func (g Game) HistoryTexts() []string {
	texts := make([]string, 0, len(g.History))
	for _, h := range g.History {
		texts = append(texts, h.ChoiceText)
	}
	return texts
}

// PlayerChoice is the lightweight view of a history entry.
type PlayerChoice struct {
	SceneID   string    `json:"sceneId"`
	ChoiceID  string    `json:"choiceId"`
	Timestamp time.Time `json:"timestamp"`
}

// GameState summarizes progress for clients that do not need the full aggregate.
type GameState struct {
	CurrentSceneID string         `json:"currentSceneId"`
	VisitedScenes  []string       `json:"visitedScenes"`
	PlayerChoices  []PlayerChoice `json:"playerChoices"`
}

// State derives the progress summary of the game.
func (g Game) State() GameState {
	state := GameState{
		CurrentSceneID: g.CurrentScene.ID,
		VisitedScenes:  make([]string, 0, len(g.History)),
		PlayerChoices:  make([]PlayerChoice, 0, len(g.History)),
	}
	for _, h := range g.History {
		state.VisitedScenes = append(state.VisitedScenes, h.SceneID)
		state.PlayerChoices = append(state.PlayerChoices, PlayerChoice{
			SceneID:   h.SceneID,
			ChoiceID:  h.ChoiceID,
			Timestamp: h.Timestamp,
		})
	}
	return state
}

// UserChaosProfile is the reputation built from votes received on a user's
// authored choices. Votes the user cast never count here.
type UserChaosProfile struct {
	UserID             string        `json:"userId"`
	DisplayName        string        `json:"displayName,omitempty"`
	TotalVotesReceived int           `json:"totalVotesReceived"`
	Contributions      Contributions `json:"contributions"`
	GlobalChaosScore   float64       `json:"globalChaosScore"`
	LastUpdated        time.Time     `json:"lastUpdated"`
}

// NewUserChaosProfile returns an all-zero profile.
func NewUserChaosProfile(userID, displayName string, now time.Time) UserChaosProfile {
	return UserChaosProfile{
		UserID:      userID,
		DisplayName: displayName,
		LastUpdated: now,
	}
}

// ReceiveVote applies a vote cast on one of the user's choices. previous is
// the category the same voter held on that choice before, if hadPrevious.
func (p *UserChaosProfile) ReceiveVote(cat, previous VoteCategory, hadPrevious bool, now time.Time) {
	if hadPrevious {
		p.Contributions.Add(previous, -1)
	} else {
		p.TotalVotesReceived++
	}
	p.Contributions.Add(cat, 1)
	p.GlobalChaosScore = ChaosScore(p.Contributions)
	p.LastUpdated = now
}
