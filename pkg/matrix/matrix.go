// Package matrix provides a dense row-major uint32 table over a single
// contiguous buffer. Signature and band matrices use it so that whole shards
// can be copied and transferred as one block.
package matrix

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/Sumatoshi-tech/neardup/pkg/safeconv"
)

const (
	// headerSize is the encoded size of the rows and cols fields.
	headerSize = 8

	// cellSize is the encoded size of one uint32 cell.
	cellSize = 4
)

var (
	// ErrOutOfRange is returned when a row or column index is outside the matrix.
	ErrOutOfRange = errors.New("matrix: index out of range")

	// ErrShape is returned when two matrices or a row and a matrix disagree on shape.
	ErrShape = errors.New("matrix: shape mismatch")

	// ErrInvalidData is returned when decoding malformed data.
	ErrInvalidData = errors.New("matrix: invalid encoded data")
)

// Matrix is a rows x cols table of uint32 values.
type Matrix struct {
	rows int
	cols int
	data []uint32
}

// New allocates a zeroed rows x cols matrix.
func New(rows, cols int) *Matrix {
	if rows < 0 || cols < 0 {
		panic(fmt.Sprintf("matrix: negative shape %dx%d", rows, cols))
	}

	return &Matrix{
		rows: rows,
		cols: cols,
		data: make([]uint32, rows*cols),
	}
}

// Rows returns the number of rows.
func (m *Matrix) Rows() int { return m.rows }

// Cols returns the number of columns.
func (m *Matrix) Cols() int { return m.cols }

// Data exposes the backing buffer in row-major order.
func (m *Matrix) Data() []uint32 { return m.data }

// Row returns row i as a slice aliasing the backing buffer.
// It panics when i is out of range, like a slice index.
func (m *Matrix) Row(i int) []uint32 {
	if i < 0 || i >= m.rows {
		panic(fmt.Sprintf("matrix: row %d out of range [0,%d)", i, m.rows))
	}

	return m.data[i*m.cols : (i+1)*m.cols : (i+1)*m.cols]
}

// At returns the cell at row i, column j.
func (m *Matrix) At(i, j int) (uint32, error) {
	if i < 0 || i >= m.rows || j < 0 || j >= m.cols {
		return 0, fmt.Errorf("%w: (%d,%d) in %dx%d", ErrOutOfRange, i, j, m.rows, m.cols)
	}

	return m.data[i*m.cols+j], nil
}

// Set stores v at row i, column j.
func (m *Matrix) Set(i, j int, v uint32) error {
	if i < 0 || i >= m.rows || j < 0 || j >= m.cols {
		return fmt.Errorf("%w: (%d,%d) in %dx%d", ErrOutOfRange, i, j, m.rows, m.cols)
	}

	m.data[i*m.cols+j] = v

	return nil
}

// SetRow copies row into row i.
func (m *Matrix) SetRow(i int, row []uint32) error {
	if i < 0 || i >= m.rows {
		return fmt.Errorf("%w: row %d in %dx%d", ErrOutOfRange, i, m.rows, m.cols)
	}

	if len(row) != m.cols {
		return fmt.Errorf("%w: row of %d cells into %d columns", ErrShape, len(row), m.cols)
	}

	copy(m.data[i*m.cols:], row)

	return nil
}

// CopyRows places all rows of src starting at row offset of m.
func (m *Matrix) CopyRows(offset int, src *Matrix) error {
	if src.cols != m.cols {
		return fmt.Errorf("%w: %d columns into %d columns", ErrShape, src.cols, m.cols)
	}

	if offset < 0 || offset+src.rows > m.rows {
		return fmt.Errorf("%w: rows [%d,%d) in %d rows", ErrOutOfRange, offset, offset+src.rows, m.rows)
	}

	copy(m.data[offset*m.cols:], src.data)

	return nil
}

// Slice returns rows [start, end) as a new matrix that shares the backing buffer.
func (m *Matrix) Slice(start, end int) (*Matrix, error) {
	if start < 0 || end < start || end > m.rows {
		return nil, fmt.Errorf("%w: rows [%d,%d) in %d rows", ErrOutOfRange, start, end, m.rows)
	}

	return &Matrix{
		rows: end - start,
		cols: m.cols,
		data: m.data[start*m.cols : end*m.cols],
	}, nil
}

// Equal reports whether both matrices have the same shape and cells.
func (m *Matrix) Equal(other *Matrix) bool {
	if m.rows != other.rows || m.cols != other.cols {
		return false
	}

	for i := range m.data {
		if m.data[i] != other.data[i] {
			return false
		}
	}

	return true
}

// MarshalBinary encodes the matrix as rows and cols followed by the cells,
// all little-endian uint32.
func (m *Matrix) MarshalBinary() ([]byte, error) {
	rows, err := safeconv.ToUint32(m.rows)
	if err != nil {
		return nil, fmt.Errorf("%w: rows: %w", ErrInvalidData, err)
	}

	cols, err := safeconv.ToUint32(m.cols)
	if err != nil {
		return nil, fmt.Errorf("%w: cols: %w", ErrInvalidData, err)
	}

	buf := make([]byte, headerSize+len(m.data)*cellSize)
	binary.LittleEndian.PutUint32(buf[0:], rows)
	binary.LittleEndian.PutUint32(buf[4:], cols)

	for i, v := range m.data {
		binary.LittleEndian.PutUint32(buf[headerSize+i*cellSize:], v)
	}

	return buf, nil
}

// UnmarshalBinary decodes data produced by MarshalBinary, replacing m.
func (m *Matrix) UnmarshalBinary(data []byte) error {
	if len(data) < headerSize {
		return fmt.Errorf("%w: %d bytes is shorter than the header", ErrInvalidData, len(data))
	}

	rows := int(binary.LittleEndian.Uint32(data[0:]))
	cols := int(binary.LittleEndian.Uint32(data[4:]))

	body := data[headerSize:]
	if len(body) != rows*cols*cellSize {
		return fmt.Errorf("%w: %dx%d needs %d bytes, got %d", ErrInvalidData, rows, cols, rows*cols*cellSize, len(body))
	}

	cells := make([]uint32, rows*cols)
	for i := range cells {
		cells[i] = binary.LittleEndian.Uint32(body[i*cellSize:])
	}

	m.rows, m.cols, m.data = rows, cols, cells

	return nil
}

// Decode is a convenience wrapper around UnmarshalBinary.
func Decode(data []byte) (*Matrix, error) {
	m := &Matrix{}

	err := m.UnmarshalBinary(data)
	if err != nil {
		return nil, err
	}

	return m, nil
}
