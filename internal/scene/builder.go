package scene

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"chaos-story-service/internal/domain"
)

const (
	DefaultTimeout           = 10 * time.Second
	DefaultEndingThreshold   = 10
	DefaultEndingProbability = 0.3
)

// Options tune a Builder. Zero values pick the defaults above; a zero Seed
// draws one from crypto/rand. A nil EndingProbability means the default,
// an explicit 0 means stories never end on their own.
type Options struct {
	Timeout           time.Duration
	EndingThreshold   int
	EndingProbability *float64
	Seed              int64
	Logger            *slog.Logger
}

// Continuation describes the step a story is about to take.
type Continuation struct {
	History     []string
	Previous    domain.Scene
	ChosenText  string
	ChaosLevel  int
	SceneNumber int
}

// Builder asks a Generator for scenes and falls back to deterministic ones.
// Every call returns a usable scene; generator failures are only logged.
type Builder struct {
	gen         Generator
	timeout     time.Duration
	threshold   int
	probability float64
	log         *slog.Logger

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewBuilder(gen Generator, opts Options) *Builder {
	if gen == nil {
		gen = NopGenerator{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.EndingThreshold <= 0 {
		opts.EndingThreshold = DefaultEndingThreshold
	}
	probability := DefaultEndingProbability
	if p := opts.EndingProbability; p != nil && *p >= 0 && *p <= 1 {
		probability = *p
	}
	if opts.Seed == 0 {
		opts.Seed = newSeed()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Builder{
		gen:         gen,
		timeout:     opts.Timeout,
		threshold:   opts.EndingThreshold,
		probability: probability,
		log:         opts.Logger,
		rnd:         rand.New(rand.NewSource(opts.Seed)),
	}
}

// Opening returns the first scene of a new story.
func (b *Builder) Opening(ctx context.Context, title, premise string, chaosLevel int) domain.Scene {
	draft, err := b.generate(ctx, Request{
		Kind:       KindOpening,
		Title:      title,
		Premise:    premise,
		ChaosLevel: chaosLevel,
	})
	if err != nil {
		b.log.Warn("opening scene fell back", "title", title, "error", err)
		return FallbackOpening(title, premise, chaosLevel)
	}
	return domain.Scene{
		ID:          sceneID(0),
		Title:       draft.Title,
		Description: draft.Description,
		Choices:     draft.Choices,
	}
}

// Continue returns the scene that follows a resolved choice.
func (b *Builder) Continue(ctx context.Context, c Continuation) domain.Scene {
	draft, err := b.generate(ctx, Request{
		Kind:          KindContinuation,
		ChaosLevel:    c.ChaosLevel,
		History:       c.History,
		PreviousScene: c.Previous,
		ChosenText:    c.ChosenText,
		SceneNumber:   c.SceneNumber,
	})
	var s domain.Scene
	if err != nil {
		b.log.Warn("continuation fell back", "scene", c.SceneNumber, "error", err)
		s = b.fallbackContinuation(c)
	} else {
		s = domain.Scene{
			ID:          sceneID(c.SceneNumber),
			Title:       draft.Title,
			Description: draft.Description,
			Choices:     draft.Choices,
		}
	}
	if b.ending(c.SceneNumber) {
		s.IsEnding = true
		s.Choices = []domain.GameChoice{}
	}
	return s
}

type result struct {
	raw string
	err error
}

// generate makes exactly one bounded attempt. A generator that ignores its
// context is abandoned at the deadline.
func (b *Builder) generate(ctx context.Context, req Request) (Draft, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	done := make(chan result, 1)
	go func() {
		raw, err := b.gen.Generate(ctx, req)
		done <- result{raw: raw, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return Draft{}, r.err
		}
		return Parse(r.raw)
	case <-ctx.Done():
		return Draft{}, fmt.Errorf("generate scene: %w", ctx.Err())
	}
}

func (b *Builder) ending(sceneNumber int) bool {
	if sceneNumber <= b.threshold {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rnd.Float64() < b.probability
}

func (b *Builder) pick(n int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rnd.Intn(n)
}

var twists = []string{
	"something unexpected happens...",
	"the situation takes a surprising turn...",
	"chaos ensues as...",
	"in a twist of fate...",
	"the unpredictable nature of this adventure reveals itself as...",
}

// FallbackOpening builds the opening scene from the premise alone.
func FallbackOpening(title, premise string, chaosLevel int) domain.Scene {
	return domain.Scene{
		ID:    sceneID(0),
		Title: title + " - The Beginning",
		Description: fmt.Sprintf("%s\n\nYou find yourself at the start of an adventure. "+
			"The chaos level is set to %d/5, so expect the unexpected! What will you do first?", premise, chaosLevel),
		Choices: fixedChoices(
			"Look around carefully and assess the situation",
			"Take immediate action without hesitation",
			"Try to find other people or allies",
			"Do something completely unexpected",
		),
	}
}

func (b *Builder) fallbackContinuation(c Continuation) domain.Scene {
	twist := twists[b.pick(len(twists))]
	return domain.Scene{
		ID:    sceneID(c.SceneNumber),
		Title: fmt.Sprintf("Scene %d: Unexpected Turn", c.SceneNumber),
		Description: fmt.Sprintf("After choosing to %q, %s You find yourself in a new situation that requires quick thinking. "+
			"The chaos level %d/5 means anything could happen next!", c.ChosenText, twist, c.ChaosLevel),
		Choices: fixedChoices(
			"Try to adapt to the new circumstances",
			"Fight against the unexpected change",
			"Embrace the chaos and go with the flow",
			"Try to find a creative solution",
		),
	}
}

func fixedChoices(texts ...string) []domain.GameChoice {
	choices := make([]domain.GameChoice, len(texts))
	for i, text := range texts {
		choices[i] = domain.GameChoice{ID: choiceID(i), Text: text}
	}
	return choices
}

func sceneID(n int) string {
	return fmt.Sprintf("scene_%d", n)
}

func newSeed() int64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return time.Now().UnixNano()
	}
	return int64(binary.LittleEndian.Uint64(b[:]))
}
