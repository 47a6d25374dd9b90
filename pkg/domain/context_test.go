package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCloneSharesCleanup(t *testing.T) {
	ctx := NewContext()
	runs := 0

	clone := ctx.Clone()
	clone.Values["k"] = "v"
	clone.OnCleanup(func() { runs++ })

	// The original is untouched by value edits but shares the cleanup list.
	require.NotContains(t, ctx.Values, "k")
	ctx.RunCleanup()
	require.Equal(t, 1, runs)

	// Hooks run exactly once.
	ctx.RunCleanup()
	require.Equal(t, 1, runs)
}

func TestForkIsolatesCleanup(t *testing.T) {
	ctx := NewContext()
	parentRuns, childRuns := 0, 0
	ctx.OnCleanup(func() { parentRuns++ })

	fork := ctx.Fork()
	fork.OnCleanup(func() { childRuns++ })

	fork.RunCleanup()
	require.Equal(t, 0, parentRuns)
	require.Equal(t, 1, childRuns)

	ctx.RunCleanup()
	require.Equal(t, 1, parentRuns)
}

func TestHooksMerge(t *testing.T) {
	var order []string
	a := Hooks{
		OnTransition: func(string, TrailEntry) { order = append(order, "a") },
	}
	b := Hooks{
		OnTransition: func(string, TrailEntry) { order = append(order, "b") },
		OnComplete:   func(string, Trail) { order = append(order, "b-complete") },
	}

	merged := a.Merge(b)
	merged.OnTransition("m", TrailEntry{})
	merged.OnComplete("m", nil)

	require.Equal(t, []string{"a", "b", "b-complete"}, order)
	require.Nil(t, merged.OnBailout)
}

func TestTrailCloneIsIndependent(t *testing.T) {
	trail := Trail{{From: "a", To: "b", Event: Event{}}}
	clone := trail.Clone()
	clone = append(clone, TrailEntry{From: "b", To: "c", Event: Event{}})

	require.Len(t, trail, 1)
	require.Len(t, clone, 2)

	last, ok := clone.Last()
	require.True(t, ok)
	require.Equal(t, "c", last.To)

	_, ok = Trail{}.Last()
	require.False(t, ok)
}

func TestFailureMarksEntry(t *testing.T) {
	ok := TrailEntry{From: "a", To: "b"}
	bad := TrailEntry{From: "a", Failure: &Failure{Detail: "x", Attempt: 1}}
	require.False(t, ok.Failed())
	require.True(t, bad.Failed())
}
