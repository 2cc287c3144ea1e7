package artifact

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"reflect"

	"github.com/sbinet/npyio"
)

// Mask is a row-major label grid of shape (Height, Width).
type Mask struct {
	Height int
	Width  int
	Labels []int32
}

func NewMask(height, width int) *Mask {
	return &Mask{Height: height, Width: width, Labels: make([]int32, height*width)}
}

func (m *Mask) At(x, y int) int32 {
	return m.Labels[y*m.Width+x]
}

// EncodeMask serializes m as a C-ordered (Height, Width) NPY array of
// little-endian int32.
func EncodeMask(m *Mask) ([]byte, error) {
	if m == nil || m.Height <= 0 || m.Width <= 0 || m.Height*m.Width != len(m.Labels) {
		return nil, errors.New("mask labels do not match its shape")
	}

	// npyio derives the shape from nested array types.
	row := reflect.ArrayOf(m.Width, reflect.TypeFor[int32]())
	grid := reflect.New(reflect.ArrayOf(m.Height, row)).Elem()
	for y := range m.Height {
		reflect.Copy(grid.Index(y), reflect.ValueOf(m.Labels[y*m.Width:(y+1)*m.Width]))
	}

	var buf bytes.Buffer
	if err := npyio.Write(&buf, grid.Interface()); err != nil {
		return nil, fmt.Errorf("failed to write npy mask: %w", err)
	}
	return buf.Bytes(), nil
}

// Element sizes of the integer dtypes a mask may be stored as.
var maskDtypes = map[string]int{
	"|i1": 1, "|u1": 1,
	"<i2": 2, "<u2": 2,
	"<i4": 4, "<u4": 4,
	"<i8": 8,
}

// DecodeMask parses a 2-D C-ordered NPY array of little-endian integers.
func DecodeMask(payload []byte) (*Mask, error) {
	body := bytes.NewReader(payload)
	r, err := npyio.NewReader(body)
	if err != nil {
		return nil, fmt.Errorf("not an npy payload: %w", err)
	}

	descr := r.Header.Descr
	if descr.Fortran {
		return nil, errors.New("fortran-ordered arrays are not supported")
	}
	size, ok := maskDtypes[descr.Type]
	if !ok {
		return nil, fmt.Errorf("unsupported npy dtype %q", descr.Type)
	}
	if len(descr.Shape) != 2 {
		return nil, fmt.Errorf("expected a 2-D array, got shape %v", descr.Shape)
	}
	height, width := descr.Shape[0], descr.Shape[1]
	if height <= 0 || width <= 0 {
		return nil, fmt.Errorf("invalid npy shape %v", descr.Shape)
	}
	remaining := body.Len()
	if width > remaining/size/height {
		return nil, fmt.Errorf("npy shape %v exceeds the %d byte body", descr.Shape, remaining)
	}
	count := height * width
	if count*size != remaining {
		return nil, fmt.Errorf("npy body holds %d bytes, want %d", remaining, count*size)
	}

	labels, err := readLabels(r, descr.Type, count)
	if err != nil {
		return nil, err
	}
	return &Mask{Height: height, Width: width, Labels: labels}, nil
}

func readLabels(r *npyio.Reader, dtype string, count int) ([]int32, error) {
	switch dtype {
	case "<i4":
		var labels []int32
		if err := r.Read(&labels); err != nil {
			return nil, fmt.Errorf("failed to read npy body: %w", err)
		}
		return labels, nil
	case "|i1":
		return widen[int8](r, count)
	case "|u1":
		return widen[uint8](r, count)
	case "<i2":
		return widen[int16](r, count)
	case "<u2":
		return widen[uint16](r, count)
	case "<u4":
		return widen[uint32](r, count)
	default:
		return widen[int64](r, count)
	}
}

func widen[T int8 | uint8 | int16 | uint16 | uint32 | int64](r *npyio.Reader, count int) ([]int32, error) {
	var values []T
	if err := r.Read(&values); err != nil {
		return nil, fmt.Errorf("failed to read npy body: %w", err)
	}
	if len(values) != count {
		return nil, fmt.Errorf("npy body holds %d labels, want %d", len(values), count)
	}
	labels := make([]int32, len(values))
	for i, v := range values {
		if int64(v) < math.MinInt32 || int64(v) > math.MaxInt32 {
			return nil, fmt.Errorf("label %d overflows int32", v)
		}
		labels[i] = int32(v)
	}
	return labels, nil
}
