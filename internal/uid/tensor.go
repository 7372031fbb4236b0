package uid

import (
	"bufio"
	"fmt"
	"io"
)

// DType names a tensor element type.
type DType string

const (
	Float64  DType = "f64"
	Float32  DType = "f32"
	Float16  DType = "f16"
	BFloat16 DType = "bf16"
	Int64    DType = "i64"
	Int32    DType = "i32"
	Int16    DType = "i16"
	Int8     DType = "i8"
	Uint8    DType = "u8"
	Bool     DType = "bool"
)

// Size returns the element width in bytes, or 0 for an unknown type.
func (d DType) Size() int {
	switch d {
	case Float64, Int64:
		return 8
	case Float32, Int32:
		return 4
	case Float16, BFloat16, Int16:
		return 2
	case Int8, Uint8, Bool:
		return 1
	default:
		return 0
	}
}

// Tensor is a strided view over a little-endian byte buffer.
//
// Strides and Offset are counted in elements. Nil Strides means the view is
// row-major contiguous starting at Offset. Device is informational only and
// never contributes to a digest.
type Tensor struct {
	DType   DType
	Shape   []int
	Strides []int
	Offset  int
	Data    []byte
	Device  string
}

// NumElements returns the product of the shape (1 for a scalar).
func (t *Tensor) NumElements() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

func rowMajorStrides(shape []int) []int {
	strides := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= shape[i]
	}
	return strides
}

func (t *Tensor) isContiguous() bool {
	if t.Strides == nil {
		return true
	}
	want := rowMajorStrides(t.Shape)
	for i := range want {
		// Strides of size-1 dimensions never affect addressing.
		if t.Shape[i] != 1 && t.Strides[i] != want[i] {
			return false
		}
	}
	return true
}

func (t *Tensor) validate() error {
	es := t.DType.Size()
	if es == 0 {
		return fmt.Errorf("unsupported dtype %q", t.DType)
	}
	for i, d := range t.Shape {
		if d < 0 {
			return fmt.Errorf("negative dimension %d at axis %d", d, i)
		}
	}
	if t.Strides != nil && len(t.Strides) != len(t.Shape) {
		return fmt.Errorf("strides rank %d != shape rank %d", len(t.Strides), len(t.Shape))
	}
	if t.Offset < 0 {
		return fmt.Errorf("negative offset %d", t.Offset)
	}
	if t.NumElements() == 0 {
		return nil
	}
	// Highest element index addressed by the view.
	maxIdx := t.Offset
	strides := t.Strides
	if strides == nil {
		strides = rowMajorStrides(t.Shape)
	}
	for i, d := range t.Shape {
		if strides[i] < 0 {
			return fmt.Errorf("negative stride at axis %d", i)
		}
		maxIdx += (d - 1) * strides[i]
	}
	if (maxIdx+1)*es > len(t.Data) {
		return fmt.Errorf("view addresses %d bytes, buffer holds %d", (maxIdx+1)*es, len(t.Data))
	}
	return nil
}

// Contiguous returns the row-major bytes of the logical view.
func (t *Tensor) Contiguous() ([]byte, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}
	es := t.DType.Size()
	n := t.NumElements()
	if t.isContiguous() {
		start := t.Offset * es
		out := make([]byte, n*es)
		copy(out, t.Data[start:start+n*es])
		return out, nil
	}
	out := make([]byte, 0, n*es)
	t.walk(func(idx int) {
		out = append(out, t.Data[idx*es:(idx+1)*es]...)
	})
	return out, nil
}

// WriteContiguous streams the row-major bytes of the view into w.
func (t *Tensor) WriteContiguous(w io.Writer) error {
	if err := t.validate(); err != nil {
		return err
	}
	es := t.DType.Size()
	n := t.NumElements()
	if t.isContiguous() {
		start := t.Offset * es
		_, err := w.Write(t.Data[start : start+n*es])
		return err
	}
	bw := bufio.NewWriter(w)
	var werr error
	t.walk(func(idx int) {
		if werr != nil {
			return
		}
		_, werr = bw.Write(t.Data[idx*es : (idx+1)*es])
	})
	if werr != nil {
		return werr
	}
	return bw.Flush()
}

// walk visits element indices of the view in row-major logical order.
func (t *Tensor) walk(visit func(idx int)) {
	if t.NumElements() == 0 {
		return
	}
	rank := len(t.Shape)
	if rank == 0 {
		visit(t.Offset)
		return
	}
	pos := make([]int, rank)
	for {
		idx := t.Offset
		for i := 0; i < rank; i++ {
			idx += pos[i] * t.Strides[i]
		}
		visit(idx)

		axis := rank - 1
		for axis >= 0 {
			pos[axis]++
			if pos[axis] < t.Shape[axis] {
				break
			}
			pos[axis] = 0
			axis--
		}
		if axis < 0 {
			return
		}
	}
}

// transpose2D returns a view of a rank-2 tensor with its axes swapped. The
// backing buffer is shared.
func (t *Tensor) transpose2D() (*Tensor, error) {
	if len(t.Shape) != 2 {
		return nil, fmt.Errorf("transpose: rank %d tensor", len(t.Shape))
	}
	strides := t.Strides
	if strides == nil {
		strides = rowMajorStrides(t.Shape)
	}
	return &Tensor{
		DType:   t.DType,
		Shape:   []int{t.Shape[1], t.Shape[0]},
		Strides: []int{strides[1], strides[0]},
		Offset:  t.Offset,
		Data:    t.Data,
		Device:  t.Device,
	}, nil
}
