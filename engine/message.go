package engine

import "github.com/hupe1980/optree/internal/bitvec"

// messageCode tags the direction a message travels in the dependency graph.
type messageCode int

const (
	explorationMessage  messageCode = iota // downward: expand a subproblem
	exploitationMessage                    // upward: propagate child bounds
)

// Message is a unit of work handed between workers through the priority
// queue. Messages own their vectors: senders copy out of per-worker scratch
// so a message survives the hand-off.
type Message struct {
	Code messageCode

	// SenderTile keys the parent vertex. Empty for the root exploration.
	SenderTile string

	// Exploration fields.
	RecipientCapture *bitvec.Vector
	RecipientFeature *bitvec.Vector

	// RecipientTile keys the vertex an exploitation message targets.
	RecipientTile string

	// Features marks the features this message concerns: for exploration,
	// the parent feature the child was split on; for exploitation, the
	// pending-signal mask. Signs carries the split direction per feature.
	Features *bitvec.Vector
	Signs    *bitvec.Vector

	Scope    float64
	Priority float64
}

// newExploration builds a downward message. The signed feature is +-(j+1);
// zero means the root problem, which has no parent to link back to.
func newExploration(senderTile string, capture, features *bitvec.Vector, signedFeature int, scope, priority float64, numFeatures int) Message {
	m := Message{
		Code:             explorationMessage,
		SenderTile:       senderTile,
		RecipientCapture: capture,
		RecipientFeature: features,
		Features:         bitvec.New(numFeatures),
		Signs:            bitvec.New(numFeatures),
		Scope:            scope,
		Priority:         priority,
	}
	if signedFeature > 0 {
		m.Features.Set(signedFeature-1, true)
		m.Signs.Set(signedFeature-1, true)
	} else if signedFeature < 0 {
		m.Features.Set(-signedFeature-1, true)
	}
	return m
}

// newExploitation builds an upward message carrying the pending-signal mask.
func newExploitation(senderTile, recipientTile string, features *bitvec.Vector, priority float64) Message {
	return Message{
		Code:          exploitationMessage,
		SenderTile:    senderTile,
		RecipientTile: recipientTile,
		Features:      features,
		Priority:      priority,
	}
}
