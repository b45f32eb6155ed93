package engine

import "github.com/hupe1980/optree/internal/bitvec"

// LocalState is the scratch memory owned by one worker: the neighbourhood
// of child tasks populated during exploration and a row-sized work buffer.
// It is never shared between workers.
type LocalState struct {
	// Neighbourhood holds the children of the subproblem being dispatched:
	// index 2*j is the false side of feature j, 2*j+1 the true side.
	Neighbourhood []Task

	// ColumnBuffer is row-sized scratch for subset and statistics work.
	ColumnBuffer *bitvec.Vector
}

func newLocalState(rows, features int) LocalState {
	return LocalState{
		Neighbourhood: make([]Task, 2*features),
		ColumnBuffer:  bitvec.New(rows),
	}
}
