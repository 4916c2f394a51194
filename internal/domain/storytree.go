package domain

import (
	"fmt"
	"slices"
	"time"
)

// StoryNode is one scene reached in a game. The root has no choice and no author.
type StoryNode struct {
	ID           string    `json:"id"`
	ParentID     string    `json:"parentId,omitempty"`
	SceneID      string    `json:"sceneId"`
	ChoiceID     string    `json:"choiceId,omitempty"`
	ChoiceText   string    `json:"choiceText,omitempty"`
	AuthorUserID string    `json:"authorUserId,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	Children     []string  `json:"children"`
	IsActive     bool      `json:"isActive"`
}

// StoryTree keeps every node ever created in a node table keyed by id.
// Nodes are never removed; abandoned branches stay inspectable.
type StoryTree struct {
	RootID string                `json:"rootId"`
	Nodes  map[string]*StoryNode `json:"nodes"`
}

// NewStoryTree creates a tree whose single active node is the opening scene.
func NewStoryTree(opening Scene, now time.Time) (*StoryTree, []string) {
	t := &StoryTree{Nodes: make(map[string]*StoryNode)}
	root := &StoryNode{
		ID:        t.nextID(),
		SceneID:   opening.ID,
		Timestamp: now,
		Children:  []string{},
		IsActive:  true,
	}
	t.RootID = root.ID
	t.Nodes[root.ID] = root
	return t, []string{root.ID}
}

func (t *StoryTree) nextID() string {
	return fmt.Sprintf("node_%d", len(t.Nodes))
}

// Node returns the node with id.
func (t *StoryTree) Node(id string) (*StoryNode, bool) {
	n, ok := t.Nodes[id]
	return n, ok
}

// Len is the number of nodes across every branch.
func (t *StoryTree) Len() int {
	return len(t.Nodes)
}

// resolve walks path and returns its last node. Every step must be a real
// parent/child link starting at the root.
func (t *StoryTree) resolve(path []string) (*StoryNode, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("%w: empty active path", ErrInvalidPath)
	}
	if path[0] != t.RootID {
		return nil, fmt.Errorf("%w: path starts at %q, root is %q", ErrInvalidPath, path[0], t.RootID)
	}
	var node *StoryNode
	for i, id := range path {
		n, ok := t.Nodes[id]
		if !ok {
			return nil, fmt.Errorf("%w: unknown node %q", ErrInvalidPath, id)
		}
		if i > 0 && (n.ParentID != path[i-1] || !slices.Contains(node.Children, id)) {
			return nil, fmt.Errorf("%w: node %q is not a child of %q", ErrInvalidPath, id, path[i-1])
		}
		node = n
	}
	return node, nil
}

// AppendChoice attaches newScene as a child of the active leaf and makes the
// path to it the only active one. It returns the new active path; the input
// slice is left untouched.
func (t *StoryTree) AppendChoice(activePath []string, choiceID, choiceText string, newScene Scene, authorUserID string, now time.Time) ([]string, error) {
	leaf, err := t.resolve(activePath)
	if err != nil {
		return nil, err
	}

	for _, n := range t.Nodes {
		n.IsActive = false
	}

	node := &StoryNode{
		ID:           t.nextID(),
		ParentID:     leaf.ID,
		SceneID:      newScene.ID,
		ChoiceID:     choiceID,
		ChoiceText:   choiceText,
		AuthorUserID: authorUserID,
		Timestamp:    now,
		Children:     []string{},
		IsActive:     true,
	}
	t.Nodes[node.ID] = node
	leaf.Children = append(leaf.Children, node.ID)

	for id := leaf.ID; id != ""; id = t.Nodes[id].ParentID {
		t.Nodes[id].IsActive = true
	}

	next := make([]string, len(activePath), len(activePath)+1)
	copy(next, activePath)
	return append(next, node.ID), nil
}

// Validate checks that path resolves and that exactly its nodes are active.
// It returns the active leaf.
func (t *StoryTree) Validate(path []string) (*StoryNode, error) {
	leaf, err := t.resolve(path)
	if err != nil {
		return nil, err
	}
	active := 0
	for _, n := range t.Nodes {
		if n.IsActive {
			active++
		}
	}
	for _, id := range path {
		if !t.Nodes[id].IsActive {
			return nil, fmt.Errorf("%w: node %q on the active path is inactive", ErrInvalidPath, id)
		}
	}
	if active != len(path) {
		return nil, fmt.Errorf("%w: %d active nodes for a path of %d", ErrInvalidPath, active, len(path))
	}
	return leaf, nil
}

// ActiveNodes returns the nodes of path in order. Missing ids are skipped.
func (t *StoryTree) ActiveNodes(path []string) []StoryNode {
	nodes := make([]StoryNode, 0, len(path))
	for _, id := range path {
		if n, ok := t.Nodes[id]; ok {
			nodes = append(nodes, *n)
		}
	}
	return nodes
}
