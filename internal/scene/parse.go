package scene

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"chaos-story-service/internal/domain"
)

// ErrMalformed wraps every reason generator output is rejected.
var ErrMalformed = errors.New("malformed scene")

var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

// Draft is a validated generator scene before identity and pacing are assigned.
type Draft struct {
	Title       string
	Description string
	Choices     []domain.GameChoice
}

type generated struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Choices     []struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"choices"`
}

// Parse extracts the outermost JSON object from raw and validates it.
// Models often wrap JSON in prose or code fences, which is tolerated.
func Parse(raw string) (Draft, error) {
	match := jsonObject.FindString(raw)
	if match == "" {
		return Draft{}, fmt.Errorf("%w: no JSON object in output", ErrMalformed)
	}
	var g generated
	if err := json.Unmarshal([]byte(match), &g); err != nil {
		return Draft{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	title := strings.TrimSpace(g.Title)
	description := strings.TrimSpace(g.Description)
	if title == "" || description == "" {
		return Draft{}, fmt.Errorf("%w: missing title or description", ErrMalformed)
	}
	if len(g.Choices) != domain.ChoicesPerScene {
		return Draft{}, fmt.Errorf("%w: %d choices, want %d", ErrMalformed, len(g.Choices), domain.ChoicesPerScene)
	}

	choices := make([]domain.GameChoice, 0, len(g.Choices))
	ids := make(map[string]struct{}, len(g.Choices))
	reassign := false
	for _, c := range g.Choices {
		text := strings.TrimSpace(c.Text)
		if text == "" {
			return Draft{}, fmt.Errorf("%w: empty choice text", ErrMalformed)
		}
		id := strings.TrimSpace(c.ID)
		if _, dup := ids[id]; id == "" || dup {
			reassign = true
		}
		ids[id] = struct{}{}
		choices = append(choices, domain.GameChoice{ID: id, Text: text})
	}
	if reassign {
		for i := range choices {
			choices[i].ID = choiceID(i)
		}
	}
	return Draft{Title: title, Description: description, Choices: choices}, nil
}

func choiceID(i int) string {
	return fmt.Sprintf("choice%d", i+1)
}
