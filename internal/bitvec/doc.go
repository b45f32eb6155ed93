// Package bitvec implements the fixed-width bit vector used to identify
// subproblems. A vector carries an auxiliary depth-budget byte that is part
// of its identity: two vectors with the same bit pattern but different
// budgets denote different subproblems.
package bitvec
