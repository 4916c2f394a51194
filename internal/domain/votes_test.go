package domain

import (
	"errors"
	"testing"
	"time"
)

func TestChaosScore(t *testing.T) {
	cases := []struct {
		name   string
		counts Contributions
		want   float64
	}{
		{"no votes", Contributions{}, 0},
		{"mild and wild", Contributions{Mild: 1, Wild: 1}, 4.5},
		{"all insane", Contributions{Insane: 3}, 10},
		{"boring drags down", Contributions{Boring: 1, Insane: 1}, 5},
		{"rounds to one decimal", Contributions{Mild: 2, Insane: 1}, 5.3},
	}
	for _, tc := range cases {
		if got := ChaosScore(tc.counts); got != tc.want {
			t.Fatalf("%s: expected %.1f, got %v", tc.name, tc.want, got)
		}
	}
}

func TestCastKeepsVoterInOneSet(t *testing.T) {
	votes := NewChaosVotes()
	sequence := []struct {
		voter string
		cat   VoteCategory
	}{
		{"u1", VoteWild}, {"u2", VoteMild}, {"u1", VoteInsane}, {"u1", VoteInsane},
		{"u3", VoteBoring}, {"u2", VoteBoring}, {"u1", VoteMild}, {"u3", VoteBoring},
	}
	for _, step := range sequence {
		votes.Cast(step.voter, step.cat)
		seen := map[string]int{}
		for _, cat := range VoteCategories {
			for _, id := range *votes.set(cat) {
				seen[id]++
			}
		}
		for id, n := range seen {
			if n != 1 {
				t.Fatalf("voter %s appears in %d sets after %+v", id, n, step)
			}
		}
	}
	if got := votes.Counts(); got != (Contributions{Boring: 2, Mild: 1}) {
		t.Fatalf("unexpected final counts %+v", got)
	}
}

func TestCastReportsPreviousCategory(t *testing.T) {
	votes := NewChaosVotes()
	if _, had := votes.Cast("u1", VoteWild); had {
		t.Fatalf("expected no previous category on first vote")
	}
	prev, had := votes.Cast("u1", VoteInsane)
	if !had || prev != VoteWild {
		t.Fatalf("expected previous wild, got %q (%v)", prev, had)
	}
	if votes.Score() != 10 {
		t.Fatalf("expected score 10, got %v", votes.Score())
	}
}

func TestParseVoteCategory(t *testing.T) {
	if _, err := ParseVoteCategory("wild"); err != nil {
		t.Fatalf("parse wild: %v", err)
	}
	_, err := ParseVoteCategory("spicy")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestContributionsFloorAtZero(t *testing.T) {
	var c Contributions
	c.Add(VoteMild, -1)
	if c.Mild != 0 {
		t.Fatalf("expected floor at zero, got %d", c.Mild)
	}
}

func TestReceiveVoteSwitch(t *testing.T) {
	now := time.Unix(100, 0)
	p := NewUserChaosProfile("author", "", now)
	p.ReceiveVote(VoteWild, "", false, now)
	p.ReceiveVote(VoteInsane, VoteWild, true, now.Add(time.Second))

	if p.TotalVotesReceived != 1 {
		t.Fatalf("expected 1 vote received, got %d", p.TotalVotesReceived)
	}
	if p.Contributions.Wild != 0 || p.Contributions.Insane != 1 {
		t.Fatalf("unexpected contributions %+v", p.Contributions)
	}
	if p.GlobalChaosScore != 10 {
		t.Fatalf("expected score 10, got %v", p.GlobalChaosScore)
	}
	if !p.LastUpdated.Equal(now.Add(time.Second)) {
		t.Fatalf("expected lastUpdated stamped, got %v", p.LastUpdated)
	}
}
