package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/optree/internal/bitvec"
)

func TestNewExplorationFeatureMasks(t *testing.T) {
	capture := bitvec.Full(4)
	features := bitvec.Full(3)

	positive := newExploration("parent", capture, features, 2, 0.5, 0.9, 3)
	assert.Equal(t, explorationMessage, positive.Code)
	assert.True(t, positive.Features.Get(1))
	assert.True(t, positive.Signs.Get(1))
	assert.Equal(t, 1, positive.Features.Count())

	negative := newExploration("parent", capture, features, -2, 0.5, 0.9, 3)
	assert.True(t, negative.Features.Get(1))
	assert.False(t, negative.Signs.Get(1))

	// The root message has no parent feature.
	root := newExploration("", capture, features, 0, math.Inf(1), 0, 3)
	assert.True(t, root.Features.Empty())
	assert.Empty(t, root.SenderTile)
}

func TestNewExploitation(t *testing.T) {
	pending := bitvec.New(3)
	pending.Set(0, true)

	m := newExploitation("child", "parent", pending, 0.7)
	assert.Equal(t, exploitationMessage, m.Code)
	assert.Equal(t, "child", m.SenderTile)
	assert.Equal(t, "parent", m.RecipientTile)
	assert.Equal(t, 0.7, m.Priority)
	assert.True(t, m.Features.Get(0))
}
