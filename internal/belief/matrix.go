package belief

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"gonum.org/v1/gonum/mat"
)

// maxMatrixElems bounds the allocation made by ReadMatrix.
const maxMatrixElems = 1 << 26

// #region matrix-codec
// WriteMatrix writes m as int32 rows, int32 cols, then rows*cols float64
// values in row-major order, all little-endian. This is the layout read by the
// offline plotting tools (numpy fromfile + reshape).
func WriteMatrix(w io.Writer, m mat.Matrix) error {
	rows, cols := m.Dims()
	header := [2]int32{int32(rows), int32(cols)}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("write matrix header: %w", err)
	}
	data := make([]float64, 0, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			data = append(data, m.At(i, j))
		}
	}
	if err := binary.Write(w, binary.LittleEndian, data); err != nil {
		return fmt.Errorf("write matrix data: %w", err)
	}
	return nil
}

// ReadMatrix reads a matrix written by WriteMatrix.
func ReadMatrix(r io.Reader) (*mat.Dense, error) {
	var header [2]int32
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("read matrix header: %w", err)
	}
	rows, cols := int(header[0]), int(header[1])
	if rows <= 0 || cols <= 0 || rows*cols > maxMatrixElems {
		return nil, fmt.Errorf("read matrix: invalid shape %dx%d", rows, cols)
	}
	data := make([]float64, rows*cols)
	if err := binary.Read(r, binary.LittleEndian, data); err != nil {
		return nil, fmt.Errorf("read matrix data: %w", err)
	}
	return mat.NewDense(rows, cols, data), nil
}

// #endregion matrix-codec

// #region binary-marshal
// MarshalBinary encodes the belief's N×2 matrix with WriteMatrix.
func (b *ParticleBelief) MarshalBinary() ([]byte, error) {
	m, err := b.Matrix()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := WriteMatrix(&buf, m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary replaces b's contents with a matrix decoded by ReadMatrix.
func (b *ParticleBelief) UnmarshalBinary(data []byte) error {
	m, err := ReadMatrix(bytes.NewReader(data))
	if err != nil {
		return err
	}
	decoded, err := FromMatrix(m)
	if err != nil {
		return err
	}
	*b = *decoded
	return nil
}

// #endregion binary-marshal
