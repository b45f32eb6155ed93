package dataset

import "fmt"

// BoolMatrix is a dense row-major boolean matrix.
type BoolMatrix struct {
	rows, cols int
	data       []bool
}

// NewBoolMatrix creates a rows x cols matrix with all cells false.
func NewBoolMatrix(rows, cols int) *BoolMatrix {
	return &BoolMatrix{rows: rows, cols: cols, data: make([]bool, rows*cols)}
}

// BoolMatrixFrom creates a matrix from row slices. All rows must have equal
// length.
func BoolMatrixFrom(rows [][]bool) *BoolMatrix {
	if len(rows) == 0 {
		return NewBoolMatrix(0, 0)
	}
	m := NewBoolMatrix(len(rows), len(rows[0]))
	for i, row := range rows {
		if len(row) != m.cols {
			panic(fmt.Sprintf("dataset: ragged matrix row %d: %d != %d", i, len(row), m.cols))
		}
		copy(m.data[i*m.cols:], row)
	}
	return m
}

// Rows returns the number of rows.
func (m *BoolMatrix) Rows() int { return m.rows }

// Cols returns the number of columns.
func (m *BoolMatrix) Cols() int { return m.cols }

// At returns the cell (i, j).
func (m *BoolMatrix) At(i, j int) bool { return m.data[i*m.cols+j] }

// Set assigns the cell (i, j).
func (m *BoolMatrix) Set(i, j int, v bool) { m.data[i*m.cols+j] = v }

// FloatMatrix is a dense row-major float64 matrix.
type FloatMatrix struct {
	rows, cols int
	data       []float64
}

// NewFloatMatrix creates a rows x cols matrix with all cells zero.
func NewFloatMatrix(rows, cols int) *FloatMatrix {
	return &FloatMatrix{rows: rows, cols: cols, data: make([]float64, rows*cols)}
}

// FloatMatrixFrom creates a matrix from row slices. All rows must have equal
// length.
func FloatMatrixFrom(rows [][]float64) *FloatMatrix {
	if len(rows) == 0 {
		return NewFloatMatrix(0, 0)
	}
	m := NewFloatMatrix(len(rows), len(rows[0]))
	for i, row := range rows {
		if len(row) != m.cols {
			panic(fmt.Sprintf("dataset: ragged matrix row %d: %d != %d", i, len(row), m.cols))
		}
		copy(m.data[i*m.cols:], row)
	}
	return m
}

// Rows returns the number of rows.
func (m *FloatMatrix) Rows() int { return m.rows }

// Cols returns the number of columns.
func (m *FloatMatrix) Cols() int { return m.cols }

// At returns the cell (i, j).
func (m *FloatMatrix) At(i, j int) float64 { return m.data[i*m.cols+j] }

// Set assigns the cell (i, j).
func (m *FloatMatrix) Set(i, j int, v float64) { m.data[i*m.cols+j] = v }

// UnitCosts builds the default classification cost matrix: zero on the
// diagonal and 1/n off it, so aggregate losses are fractions of the
// training set.
func UnitCosts(classes, n int) *FloatMatrix {
	m := NewFloatMatrix(classes, classes)
	for i := 0; i < classes; i++ {
		for j := 0; j < classes; j++ {
			if i != j {
				m.Set(i, j, 1.0/float64(n))
			}
		}
	}
	return m
}
