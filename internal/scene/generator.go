// Package scene turns generator output into playable scenes and supplies the
// deterministic fallbacks used whenever the generator cannot be trusted.
package scene

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chaos-story-service/internal/domain"
)

// Kind distinguishes the opening scene from a continuation.
type Kind int

const (
	KindOpening Kind = iota
	KindContinuation
)

// Request is everything a generator needs to draft a scene.
type Request struct {
	Kind          Kind
	Title         string
	Premise       string
	ChaosLevel    int
	History       []string
	PreviousScene domain.Scene
	ChosenText    string
	SceneNumber   int
}

// Generator drafts raw scene text. Output is untrusted and may be malformed.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// ErrGeneratorDisabled is returned by NopGenerator.
var ErrGeneratorDisabled = errors.New("scene generator disabled")

// NopGenerator always fails, so every scene comes from the fallback path.
type NopGenerator struct{}

func (NopGenerator) Generate(context.Context, Request) (string, error) {
	return "", ErrGeneratorDisabled
}

var chaosDescriptions = map[int]string{
	1: "Mild - Slightly unpredictable with minor twists",
	2: "Moderate - Some unexpected turns and surprises",
	3: "Wild - Significant plot twists and chaotic elements",
	4: "Extreme - Highly unpredictable with major chaos",
	5: "Maximum Chaos - Completely unpredictable and absurd",
}

// ChaosLevelDescription explains what a chaos level means to the generator.
func ChaosLevelDescription(level int) string {
	if d, ok := chaosDescriptions[level]; ok {
		return d
	}
	return chaosDescriptions[domain.MinChaosLevel]
}

const responseFormat = `Format your response as JSON:
{
  "title": "Scene Title",
  "description": "Scene description",
  "choices": [
    {"id": "choice1", "text": "Choice 1 description"},
    {"id": "choice2", "text": "Choice 2 description"},
    {"id": "choice3", "text": "Choice 3 description"},
    {"id": "choice4", "text": "Choice 4 description"}
  ]
}

Make sure the JSON is valid and properly formatted.`

// endingHintAfter is the scene number past which the prompt invites an ending.
const endingHintAfter = 8

// BuildPrompt renders req as a generator prompt asking for JSON output.
func BuildPrompt(req Request) string {
	var b strings.Builder
	level := fmt.Sprintf("Chaos Level: %d/5 - %s\n", req.ChaosLevel, ChaosLevelDescription(req.ChaosLevel))

	if req.Kind == KindOpening {
		fmt.Fprintf(&b, "You are creating the opening scene for a \"Choose Your Own Adventure\" story called %q.\n\n", req.Title)
		fmt.Fprintf(&b, "Initial Setup: %s\n", req.Premise)
		b.WriteString(level)
		b.WriteString("\nCreate an engaging opening scene that:\n")
		b.WriteString("1. Sets up the story based on the initial setup\n")
		b.WriteString("2. Incorporates the specified chaos level\n")
		b.WriteString("3. Ends with exactly 4 meaningful choices for the reader\n")
		b.WriteString("4. Keeps the description under 200 words\n")
		b.WriteString("5. Makes each choice lead to distinctly different story paths\n\n")
		b.WriteString(responseFormat)
		return b.String()
	}

	b.WriteString("You are continuing a \"Choose Your Own Adventure\" story.\n\n")
	b.WriteString("Previous Story Choices:\n")
	for i, text := range req.History {
		fmt.Fprintf(&b, "%d. %s\n", i+1, text)
	}
	fmt.Fprintf(&b, "\nPrevious Scene: %s\n", req.PreviousScene.Description)
	fmt.Fprintf(&b, "Chosen Action: %s\n", req.ChosenText)
	b.WriteString(level)
	fmt.Fprintf(&b, "Scene Number: %d\n", req.SceneNumber)
	b.WriteString("\nContinue the story by:\n")
	b.WriteString("1. Building naturally from the chosen action\n")
	b.WriteString("2. Incorporating the chaos level appropriately\n")
	b.WriteString("3. Creating an engaging scene under 200 words\n")
	b.WriteString("4. Providing exactly 4 new choices\n")
	b.WriteString("5. Escalating tension and stakes as the story progresses\n\n")
	if req.SceneNumber > endingHintAfter {
		b.WriteString("Consider if this might be a good place to end the story with some choices leading to conclusions.\n\n")
	}
	b.WriteString(responseFormat)
	return b.String()
}
