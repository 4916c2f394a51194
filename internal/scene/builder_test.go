package scene

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"chaos-story-service/internal/domain"
)

type scriptedGenerator struct {
	raw   string
	err   error
	block bool
	last  Request
}

func (g *scriptedGenerator) Generate(ctx context.Context, req Request) (string, error) {
	g.last = req
	if g.block {
		select {} // ignores ctx on purpose
	}
	return g.raw, g.err
}

const validScene = "Here you go:\n```json\n" + `{
  "title": "The Vault",
  "description": "A door hums.",
  "choices": [
    {"id": "a", "text": "Open it"},
    {"id": "b", "text": "Knock"},
    {"id": "c", "text": "Leave"},
    {"id": "d", "text": "Sing"}
  ]
}` + "\n```"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestBuilder(gen Generator, opts Options) *Builder {
	opts.Logger = quietLogger()
	if opts.Seed == 0 {
		opts.Seed = 42
	}
	return NewBuilder(gen, opts)
}

func TestOpeningUsesGeneratorOutput(t *testing.T) {
	gen := &scriptedGenerator{raw: validScene}
	b := newTestBuilder(gen, Options{})

	s := b.Opening(context.Background(), "Vault", "A bank heist", 3)
	if s.ID != "scene_0" || s.Title != "The Vault" || len(s.Choices) != 4 || s.IsEnding {
		t.Fatalf("unexpected scene %+v", s)
	}
	if s.Choices[0].ID != "a" {
		t.Fatalf("expected generator ids kept, got %+v", s.Choices)
	}
	if gen.last.Kind != KindOpening || gen.last.ChaosLevel != 3 || gen.last.Premise != "A bank heist" {
		t.Fatalf("unexpected request %+v", gen.last)
	}
}

func TestOpeningFallsBack(t *testing.T) {
	cases := map[string]*scriptedGenerator{
		"error":         {err: errors.New("quota exceeded")},
		"not json":      {raw: "Once upon a time..."},
		"missing field": {raw: `{"title": "x", "choices": []}`},
		"three choices": {raw: `{"title":"t","description":"d","choices":[{"text":"1"},{"text":"2"},{"text":"3"}]}`},
	}
	for name, gen := range cases {
		s := newTestBuilder(gen, Options{}).Opening(context.Background(), "Vault", "A bank heist", 2)
		want := FallbackOpening("Vault", "A bank heist", 2)
		if s.Title != want.Title || s.Description != want.Description || len(s.Choices) != 4 || s.IsEnding {
			t.Fatalf("%s: expected fallback, got %+v", name, s)
		}
	}
}

func TestGenerateIsBoundedByTimeout(t *testing.T) {
	b := newTestBuilder(&scriptedGenerator{block: true}, Options{Timeout: 20 * time.Millisecond})

	start := time.Now()
	s := b.Opening(context.Background(), "T", "P", 1)
	if time.Since(start) > time.Second {
		t.Fatalf("generator call was not bounded")
	}
	if len(s.Choices) != 4 {
		t.Fatalf("expected fallback scene, got %+v", s)
	}
}

func TestContinueEndingPolicy(t *testing.T) {
	b := newTestBuilder(NopGenerator{}, Options{EndingThreshold: 10, EndingProbability: probability(1)})

	s := b.Continue(context.Background(), Continuation{ChosenText: "run", ChaosLevel: 2, SceneNumber: 10})
	if s.IsEnding || len(s.Choices) != 4 {
		t.Fatalf("scene 10 must not end, got %+v", s)
	}
	if s.ID != "scene_10" || !strings.Contains(s.Description, `"run"`) {
		t.Fatalf("unexpected fallback continuation %+v", s)
	}

	s = b.Continue(context.Background(), Continuation{ChosenText: "run", ChaosLevel: 2, SceneNumber: 11})
	if !s.IsEnding || len(s.Choices) != 0 {
		t.Fatalf("expected ending past threshold, got %+v", s)
	}
}

func probability(p float64) *float64 { return &p }

func TestContinueNeverEndsWithZeroProbability(t *testing.T) {
	b := newTestBuilder(NopGenerator{}, Options{EndingThreshold: 1, EndingProbability: probability(0)})
	for n := 2; n < 200; n++ {
		if s := b.Continue(context.Background(), Continuation{SceneNumber: n}); s.IsEnding {
			t.Fatalf("scene %d ended with zero ending probability", n)
		}
	}
}

func TestContinueEndingRateIsBounded(t *testing.T) {
	b := newTestBuilder(NopGenerator{}, Options{Seed: 1})
	endings := 0
	const n = 2000
	for i := 0; i < n; i++ {
		if b.Continue(context.Background(), Continuation{SceneNumber: 11}).IsEnding {
			endings++
		}
	}
	rate := float64(endings) / n
	if rate < 0.25 || rate > 0.35 {
		t.Fatalf("expected ending rate near 0.3, got %.3f", rate)
	}
}

func TestContinuePassesContext(t *testing.T) {
	gen := &scriptedGenerator{raw: validScene}
	b := newTestBuilder(gen, Options{})
	prev := domain.Scene{ID: "scene_1", Description: "A hallway"}
	s := b.Continue(context.Background(), Continuation{
		History:     []string{"enter", "walk"},
		Previous:    prev,
		ChosenText:  "walk",
		ChaosLevel:  4,
		SceneNumber: 2,
	})
	if s.ID != "scene_2" || s.Title != "The Vault" {
		t.Fatalf("unexpected scene %+v", s)
	}
	prompt := BuildPrompt(gen.last)
	for _, want := range []string{"1. enter", "2. walk", "Previous Scene: A hallway", "Chosen Action: walk", "Scene Number: 2", "4/5 - Extreme"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if strings.Contains(prompt, "end the story") {
		t.Fatalf("ending hint must only appear late in the story")
	}
}
