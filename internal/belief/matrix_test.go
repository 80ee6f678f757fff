package belief

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestMatrixExportOrder(t *testing.T) {
	b := New()
	b.AddParticle(3, -0.5)
	b.AddParticle(1, -1.5)
	b.AddParticle(2, 0)

	m, err := b.Matrix()
	require.NoError(t, err)

	rows, cols := m.Dims()
	assert.Equal(t, 3, rows)
	assert.Equal(t, 2, cols)
	assert.Equal(t, []float64{3, -0.5}, m.RawRowView(0))
	assert.Equal(t, []float64{1, -1.5}, m.RawRowView(1))
	assert.Equal(t, []float64{2, 0}, m.RawRowView(2))

	back, err := FromMatrix(m)
	require.NoError(t, err)
	assert.Equal(t, b.Values(), back.Values())
	assert.Equal(t, b.LogWeights(), back.LogWeights())
}

func TestFromMatrixWrongShape(t *testing.T) {
	_, err := FromMatrix(mat.NewDense(2, 3, nil))
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestWriteMatrixLayout(t *testing.T) {
	m := mat.NewDense(2, 2, []float64{1, 2, 3, 4})

	var buf bytes.Buffer
	require.NoError(t, WriteMatrix(&buf, m))

	raw := buf.Bytes()
	require.Len(t, raw, 8+4*8)
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(raw[0:4]))
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(raw[4:8]))
	// row-major: (0,1) is the second value
	assert.Equal(t, 2.0, math.Float64frombits(binary.LittleEndian.Uint64(raw[16:24])))

	got, err := ReadMatrix(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.True(t, mat.Equal(m, got))
}

func TestReadMatrixRejectsBadInput(t *testing.T) {
	var bad bytes.Buffer
	require.NoError(t, binary.Write(&bad, binary.LittleEndian, [2]int32{-1, 2}))
	_, err := ReadMatrix(&bad)
	assert.Error(t, err)

	var truncated bytes.Buffer
	require.NoError(t, binary.Write(&truncated, binary.LittleEndian, [2]int32{3, 2}))
	require.NoError(t, binary.Write(&truncated, binary.LittleEndian, []float64{1, 2}))
	_, err = ReadMatrix(&truncated)
	assert.Error(t, err)
}

func TestBinaryMarshalBelief(t *testing.T) {
	b := FromValues([]float64{0.1, 0.2, 0.3})
	b.SetLogWeights([]float64{-1, -2, -3})

	data, err := b.MarshalBinary()
	require.NoError(t, err)

	var decoded ParticleBelief
	require.NoError(t, decoded.UnmarshalBinary(data))
	assert.Equal(t, b.Values(), decoded.Values())
	assert.Equal(t, b.LogWeights(), decoded.LogWeights())

	_, err = New().MarshalBinary()
	assert.ErrorIs(t, err, ErrEmptyBelief)
}
