package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// CurrentSchemaVersion is stamped on every game written by this service.
// Version 0 documents use the flat-history layout with three vote categories.
const CurrentSchemaVersion = 2

type legacyVotes struct {
	Boring []string `json:"boring"`
	Mild   []string `json:"mild"`
	Wild   []string `json:"wild"`
	Insane []string `json:"insane"`
}

type legacyHistoryEntry struct {
	SceneID          string       `json:"sceneId"`
	SceneTitle       string       `json:"sceneTitle"`
	SceneDescription string       `json:"sceneDescription"`
	ChoiceID         string       `json:"choiceId"`
	ChoiceText       string       `json:"choiceText"`
	Timestamp        int64        `json:"timestamp"`
	ChosenBy         string       `json:"chosenBy"`
	ChosenByUsername string       `json:"chosenByUsername"`
	ChaosVotes       *legacyVotes `json:"chaosVotes"`
}

type legacyGame struct {
	ID                string               `json:"id"`
	Title             string               `json:"title"`
	InitialPrompt     string               `json:"initialPrompt"`
	ChaosLevel        int                  `json:"chaosLevel"`
	CreatedAt         int64                `json:"createdAt"`
	CreatedBy         string               `json:"createdBy"`
	CreatedByUsername string               `json:"createdByUsername"`
	CurrentScene      Scene                `json:"currentScene"`
	StoryHistory      []legacyHistoryEntry `json:"storyHistory"`
}

// DecodeGame reads a stored game document, migrating legacy layouts. The
// second return value reports whether a migration was applied.
func DecodeGame(raw []byte) (Game, bool, error) {
	var header struct {
		SchemaVersion int `json:"schemaVersion"`
	}
	if err := json.Unmarshal(raw, &header); err != nil {
		return Game{}, false, fmt.Errorf("decode game: %w", err)
	}
	if header.SchemaVersion >= CurrentSchemaVersion {
		var g Game
		if err := json.Unmarshal(raw, &g); err != nil {
			return Game{}, false, fmt.Errorf("decode game: %w", err)
		}
		return g, false, nil
	}

	var legacy legacyGame
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return Game{}, false, fmt.Errorf("decode legacy game: %w", err)
	}
	return migrateLegacyGame(legacy), true, nil
}

// migrateLegacyGame converts a flat-history document into the branching
// layout: the history becomes a single chain ending at the current scene, and
// three-category votes gain an empty boring set with scores recomputed.
func migrateLegacyGame(legacy legacyGame) Game {
	g := Game{
		SchemaVersion:    CurrentSchemaVersion,
		ID:               legacy.ID,
		Title:            legacy.Title,
		Premise:          legacy.InitialPrompt,
		ChaosLevel:       legacy.ChaosLevel,
		CreatedAt:        fromMillis(legacy.CreatedAt),
		OwnerUserID:      legacy.CreatedBy,
		OwnerDisplayName: legacy.CreatedByUsername,
		CurrentScene:     legacy.CurrentScene,
		History:          make([]HistoryEntry, 0, len(legacy.StoryHistory)),
	}
	g.UpdatedAt = g.CreatedAt

	for _, h := range legacy.StoryHistory {
		votes := NewChaosVotes()
		if h.ChaosVotes != nil {
			votes = ChaosVotes(*h.ChaosVotes)
		}
		votes.normalize()
		g.History = append(g.History, HistoryEntry{
			SceneID:           h.SceneID,
			SceneTitle:        h.SceneTitle,
			SceneDescription:  h.SceneDescription,
			ChoiceID:          h.ChoiceID,
			ChoiceText:        h.ChoiceText,
			Timestamp:         fromMillis(h.Timestamp),
			AuthorUserID:      h.ChosenBy,
			AuthorDisplayName: h.ChosenByUsername,
			Votes:             votes,
			ChaosScore:        votes.Score(),
		})
	}

	rootScene := g.CurrentScene
	if len(g.History) > 0 {
		rootScene = Scene{ID: g.History[0].SceneID}
	}
	tree, path := NewStoryTree(rootScene, g.CreatedAt)
	for i, h := range g.History {
		next := g.CurrentScene
		if i+1 < len(g.History) {
			next = Scene{ID: g.History[i+1].SceneID}
		}
		// path always resolves on a chain built here.
		path, _ = tree.AppendChoice(path, h.ChoiceID, h.ChoiceText, next, h.AuthorUserID, h.Timestamp)
	}
	g.StoryTree = tree
	g.ActivePath = path
	if n := len(g.History); n > 0 {
		g.UpdatedAt = g.History[n-1].Timestamp
	}
	return g
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
