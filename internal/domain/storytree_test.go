package domain

import (
	"errors"
	"testing"
	"time"
)

func TestAppendChoiceMovesActivePath(t *testing.T) {
	now := time.Unix(0, 0)
	tree, path := NewStoryTree(Scene{ID: "scene_0"}, now)

	path, err := tree.AppendChoice(path, "choice1", "go left", Scene{ID: "scene_1"}, "u1", now)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	path, err = tree.AppendChoice(path, "choice2", "open door", Scene{ID: "scene_2"}, "u2", now)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if len(path) != 3 {
		t.Fatalf("expected path of 3, got %v", path)
	}
	if _, err := tree.Validate(path); err != nil {
		t.Fatalf("validate: %v", err)
	}

	// Branch off the root: the old suffix must go inactive.
	oldLeaf := path[2]
	oldMiddle := path[1]
	branch, err := tree.AppendChoice(path[:1], "choice3", "go right", Scene{ID: "scene_1"}, "u3", now)
	if err != nil {
		t.Fatalf("branch: %v", err)
	}
	leaf, err := tree.Validate(branch)
	if err != nil {
		t.Fatalf("validate branch: %v", err)
	}
	if leaf.ChoiceText != "go right" || leaf.AuthorUserID != "u3" {
		t.Fatalf("unexpected leaf %+v", leaf)
	}
	if tree.Nodes[oldLeaf].IsActive || tree.Nodes[oldMiddle].IsActive {
		t.Fatalf("expected abandoned branch inactive")
	}
	if tree.Len() != 4 {
		t.Fatalf("expected every node retained, got %d", tree.Len())
	}
	root := tree.Nodes[tree.RootID]
	if len(root.Children) != 2 {
		t.Fatalf("expected two branches from root, got %v", root.Children)
	}
}

func TestAppendChoiceDoesNotAliasInput(t *testing.T) {
	tree, path := NewStoryTree(Scene{ID: "scene_0"}, time.Unix(0, 0))
	path = append(make([]string, 0, 8), path...)
	next, err := tree.AppendChoice(path, "c", "t", Scene{ID: "scene_1"}, "u", time.Unix(0, 0))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if len(path) != 1 || len(next) != 2 {
		t.Fatalf("expected input untouched, got %v and %v", path, next)
	}
}

func TestAppendChoiceRejectsStalePath(t *testing.T) {
	tree, _ := NewStoryTree(Scene{ID: "scene_0"}, time.Unix(0, 0))
	cases := [][]string{
		nil,
		{"node_9"},
		{tree.RootID, "node_9"},
	}
	for _, path := range cases {
		if _, err := tree.AppendChoice(path, "c", "t", Scene{ID: "x"}, "u", time.Unix(0, 0)); !errors.Is(err, ErrInvalidPath) {
			t.Fatalf("path %v: expected invalid path, got %v", path, err)
		}
	}
	if tree.Len() != 1 {
		t.Fatalf("expected tree unchanged, got %d nodes", tree.Len())
	}
}

func TestValidateDetectsStrayActiveNode(t *testing.T) {
	tree, path := NewStoryTree(Scene{ID: "scene_0"}, time.Unix(0, 0))
	path, _ = tree.AppendChoice(path, "c1", "a", Scene{ID: "scene_1"}, "u", time.Unix(0, 0))
	_, _ = tree.AppendChoice(path[:1], "c2", "b", Scene{ID: "scene_1"}, "u", time.Unix(0, 0))

	// path now points at the abandoned branch.
	if _, err := tree.Validate(path); !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("expected invalid path, got %v", err)
	}
}

func TestGameValidateChecksCurrentScene(t *testing.T) {
	tree, path := NewStoryTree(Scene{ID: "scene_0"}, time.Unix(0, 0))
	g := Game{ID: "g", StoryTree: tree, ActivePath: path, CurrentScene: Scene{ID: "scene_0"}}
	if err := g.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	g.CurrentScene.ID = "scene_5"
	if err := g.Validate(); !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("expected invalid path, got %v", err)
	}
}
