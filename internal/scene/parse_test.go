package scene

import (
	"errors"
	"testing"
)

func TestParseReassignsMissingOrDuplicateIDs(t *testing.T) {
	raw := `{"title":"T","description":"D","choices":[
		{"id":"x","text":"1"},{"id":"x","text":"2"},{"text":"3"},{"id":"y","text":"4"}]}`
	d, err := Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	for i, c := range d.Choices {
		if c.ID != choiceID(i) {
			t.Fatalf("expected reassigned ids, got %+v", d.Choices)
		}
	}
}

func TestParseRejects(t *testing.T) {
	cases := []string{
		"",
		"no braces here",
		`{"title": "T", "description": "D", "choices": "nope"}`,
		`{"title": "", "description": "D", "choices": [{"text":"1"},{"text":"2"},{"text":"3"},{"text":"4"}]}`,
		`{"title": "T", "description": "D", "choices": [{"text":"1"},{"text":"2"},{"text":"3"},{"text":" "}]}`,
		`{"title": "T", "description": "D", "choices": [{"text":"1"},{"text":"2"},{"text":"3"},{"text":"4"},{"text":"5"}]}`,
	}
	for _, raw := range cases {
		if _, err := Parse(raw); !errors.Is(err, ErrMalformed) {
			t.Fatalf("expected malformed for %q, got %v", raw, err)
		}
	}
}
