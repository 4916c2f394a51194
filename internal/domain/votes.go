package domain

import (
	"fmt"
	"math"
	"slices"
)

// VoteCategory names how chaotic a voter judged a resolved choice.
type VoteCategory string

const (
	VoteBoring VoteCategory = "boring"
	VoteMild   VoteCategory = "mild"
	VoteWild   VoteCategory = "wild"
	VoteInsane VoteCategory = "insane"
)

// VoteSchemeVersion identifies the category set below. Version 1 documents
// had no boring category.
const VoteSchemeVersion = 2

// VoteCategories lists every category of the current scheme in weight order.
var VoteCategories = []VoteCategory{VoteBoring, VoteMild, VoteWild, VoteInsane}

var voteWeights = map[VoteCategory]float64{
	VoteBoring: 0,
	VoteMild:   3,
	VoteWild:   6,
	VoteInsane: 10,
}

// Weight returns the category weight on the 0-10 chaos scale.
func (c VoteCategory) Weight() float64 {
	return voteWeights[c]
}

// Valid reports whether c belongs to the current scheme.
func (c VoteCategory) Valid() bool {
	_, ok := voteWeights[c]
	return ok
}

// ParseVoteCategory validates a raw category name.
func ParseVoteCategory(raw string) (VoteCategory, error) {
	c := VoteCategory(raw)
	if !c.Valid() {
		return "", invalid("voteCategory", fmt.Sprintf("unknown vote category %q", raw))
	}
	return c, nil
}

// Contributions counts votes per category.
type Contributions struct {
	Boring int `json:"boring"`
	Mild   int `json:"mild"`
	Wild   int `json:"wild"`
	Insane int `json:"insane"`
}

func (c *Contributions) slot(cat VoteCategory) *int {
	switch cat {
	case VoteBoring:
		return &c.Boring
	case VoteMild:
		return &c.Mild
	case VoteWild:
		return &c.Wild
	case VoteInsane:
		return &c.Insane
	}
	return nil
}

// Get returns the count for cat.
func (c Contributions) Get(cat VoteCategory) int {
	if p := c.slot(cat); p != nil {
		return *p
	}
	return 0
}

// Add adjusts the count for cat by delta, never going below zero.
func (c *Contributions) Add(cat VoteCategory, delta int) {
	p := c.slot(cat)
	if p == nil {
		return
	}
	*p = max(0, *p+delta)
}

// Total is the number of votes across every category.
func (c Contributions) Total() int {
	return c.Boring + c.Mild + c.Wild + c.Insane
}

// ChaosScore is the weighted average of c rounded to one decimal, or 0
// when there are no votes. Entry scores and profile scores share it.
func ChaosScore(c Contributions) float64 {
	total := c.Total()
	if total == 0 {
		return 0
	}
	var sum float64
	for _, cat := range VoteCategories {
		sum += cat.Weight() * float64(c.Get(cat))
	}
	return round1(sum / float64(total))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// ChaosVotes holds four disjoint voter-id sets, one per category.
// A voter id appears in at most one of them.
type ChaosVotes struct {
	Boring []string `json:"boring"`
	Mild   []string `json:"mild"`
	Wild   []string `json:"wild"`
	Insane []string `json:"insane"`
}

// NewChaosVotes returns empty, non-nil sets so documents serialize as [].
func NewChaosVotes() ChaosVotes {
	return ChaosVotes{Boring: []string{}, Mild: []string{}, Wild: []string{}, Insane: []string{}}
}

func (v *ChaosVotes) set(cat VoteCategory) *[]string {
	switch cat {
	case VoteBoring:
		return &v.Boring
	case VoteMild:
		return &v.Mild
	case VoteWild:
		return &v.Wild
	case VoteInsane:
		return &v.Insane
	}
	return nil
}

// CategoryOf reports which set currently holds voterID.
func (v ChaosVotes) CategoryOf(voterID string) (VoteCategory, bool) {
	for _, cat := range VoteCategories {
		if slices.Contains(*v.set(cat), voterID) {
			return cat, true
		}
	}
	return "", false
}

// Cast moves voterID into cat and returns the category it left, if any.
func (v *ChaosVotes) Cast(voterID string, cat VoteCategory) (VoteCategory, bool) {
	previous, had := v.CategoryOf(voterID)
	for _, c := range VoteCategories {
		s := v.set(c)
		*s = slices.DeleteFunc(*s, func(id string) bool { return id == voterID })
	}
	target := v.set(cat)
	*target = append(*target, voterID)
	return previous, had
}

// Counts returns the size of each set.
func (v ChaosVotes) Counts() Contributions {
	return Contributions{
		Boring: len(v.Boring),
		Mild:   len(v.Mild),
		Wild:   len(v.Wild),
		Insane: len(v.Insane),
	}
}

// Score is the chaos score of the current sets.
func (v ChaosVotes) Score() float64 {
	return ChaosScore(v.Counts())
}

// normalize replaces nil sets and drops duplicate ids, keeping the first
// set a voter was found in.
func (v *ChaosVotes) normalize() {
	seen := make(map[string]struct{})
	for _, cat := range VoteCategories {
		s := v.set(cat)
		kept := make([]string, 0, len(*s))
		for _, id := range *s {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			kept = append(kept, id)
		}
		*s = kept
	}
}
