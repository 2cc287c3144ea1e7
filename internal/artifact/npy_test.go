package artifact

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/sbinet/npyio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rawNPY builds a version 1.0 payload with a hand-written header.
func rawNPY(descr, fortran, shape string, body any) []byte {
	header := fmt.Sprintf("{'descr': '%s', 'fortran_order': %s, 'shape': %s, }", descr, fortran, shape)
	header += string(bytes.Repeat([]byte(" "), 64-(10+len(header)+1)%64)) + "\n"

	var buf bytes.Buffer
	buf.WriteString("\x93NUMPY\x01\x00")
	binary.Write(&buf, binary.LittleEndian, uint16(len(header)))
	buf.WriteString(header)
	if body != nil {
		binary.Write(&buf, binary.LittleEndian, body)
	}
	return buf.Bytes()
}

func TestEncodeMask_Header(t *testing.T) {
	m := &Mask{Height: 2, Width: 3, Labels: []int32{0, 1, 2, 2, 1, 0}}

	payload, err := EncodeMask(m)
	require.NoError(t, err)

	r, err := npyio.NewReader(bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, "<i4", r.Header.Descr.Type)
	assert.False(t, r.Header.Descr.Fortran)
	assert.Equal(t, []int{2, 3}, r.Header.Descr.Shape)

	var labels []int32
	require.NoError(t, r.Read(&labels))
	assert.Equal(t, m.Labels, labels)
}

func TestMaskCodec(t *testing.T) {
	m := &Mask{Height: 3, Width: 2, Labels: []int32{2, 0, 1, 1, 0, 2}}

	payload, err := EncodeMask(m)
	require.NoError(t, err)

	got, err := DecodeMask(payload)
	require.NoError(t, err)
	assert.Equal(t, m, got)
	assert.Equal(t, int32(1), got.At(0, 1))
}

func TestDecodeMask_WidensIntegers(t *testing.T) {
	tests := map[string]struct {
		descr string
		body  any
	}{
		"int64": {descr: "<i8", body: []int64{4, 7}},
		"uint8": {descr: "|u1", body: []uint8{4, 7}},
		"int16": {descr: "<i2", body: []int16{4, 7}},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := DecodeMask(rawNPY(tc.descr, "False", "(1, 2)", tc.body))
			require.NoError(t, err)
			assert.Equal(t, []int32{4, 7}, got.Labels)
		})
	}
}

func TestDecodeMask_Rejects(t *testing.T) {
	valid, err := EncodeMask(&Mask{Height: 1, Width: 2, Labels: []int32{1, 2}})
	require.NoError(t, err)

	tests := map[string][]byte{
		"bad magic":      []byte("NOTNUMPY0000"),
		"truncated":      valid[:len(valid)-2],
		"trailing bytes": append(append([]byte{}, valid...), 0, 0, 0, 0),
		"3-d shape":      rawNPY("<i4", "False", "(1, 2, 1)", []int32{1, 2}),
		"fortran":        rawNPY("<i4", "True", "(1, 2)", []int32{1, 2}),
		"float data":     rawNPY("<f4", "False", "(1, 2)", []float32{1, 2}),
		"empty shape":    rawNPY("<i4", "False", "(0, 2)", nil),
		"int64 overflow": rawNPY("<i8", "False", "(1, 2)", []int64{1, 1 << 40}),
		"product wraps":  rawNPY("<i4", "False", "(4294967296, 4294967296)", []int32{1, 2}),
		"exceeds body":   rawNPY("<i4", "False", "(1000, 1000)", []int32{1, 2}),
		"wide shape":     rawNPY("|u1", "False", "(3, 9223372036854775807)", []uint8{1, 2}),
	}
	for name, payload := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeMask(payload)
			assert.Error(t, err)
		})
	}
}

func TestEncodeMask_ShapeMismatch(t *testing.T) {
	_, err := EncodeMask(&Mask{Height: 2, Width: 2, Labels: []int32{1}})
	assert.Error(t, err)
}
