// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package array

// View is a strided, read-only window over a raw byte buffer:
// a dtype, a full shape, an iteration order, and an optional
// selection. It never copies the backing buffer.
type View struct {
	Buf   []byte
	Dtype Dtype
	Shape Shape
	Order Order
	Sel   Selection // normalized: one Triple per axis, never nil
}

// NewView validates buf against dtype/shape and sel, and returns
// a View over it. shape may be empty (scalar); sel may be nil
// (whole array).
func NewView(buf []byte, dtype Dtype, shape Shape, order Order, sel Selection) (*View, error) {
	if err := ValidateRawSize(len(buf), dtype, shape); err != nil {
		return nil, err
	}
	if err := sel.Validate(shape); err != nil {
		return nil, err
	}
	return &View{
		Buf:   buf,
		Dtype: dtype,
		Shape: shape,
		Order: order,
		Sel:   sel.Normalize(shape),
	}, nil
}

// elementStrides returns the per-axis stride, in elements, implied
// by v.Shape and v.Order.
func (v *View) elementStrides() []int64 {
	n := len(v.Shape)
	strides := make([]int64, n)
	switch v.Order {
	case COrder:
		stride := int64(1)
		for i := n - 1; i >= 0; i-- {
			strides[i] = stride
			stride *= v.Shape[i]
		}
	case FOrder:
		stride := int64(1)
		for i := 0; i < n; i++ {
			strides[i] = stride
			stride *= v.Shape[i]
		}
	}
	return strides
}

// nestOrder returns the axis visitation order, outermost to
// innermost, for v.Order: last axis fastest for C, first axis
// fastest for F. This only affects iteration sequence, not the
// set of elements visited.
func (v *View) nestOrder() []int {
	n := len(v.Shape)
	order := make([]int, n)
	if v.Order == COrder {
		for i := 0; i < n; i++ {
			order[i] = i
		}
	} else {
		for i := 0; i < n; i++ {
			order[i] = n - 1 - i
		}
	}
	return order
}

// OutShape returns the shape of v.Sel applied to v.Shape.
func (v *View) OutShape() Shape {
	return v.Sel.OutShape(v.Shape)
}

// Each calls fn with the byte offset (into v.Buf) of every element
// in the selection, visited in canonical iteration order (outermost-
// to-innermost for C, innermost-to-outermost for F). It stops early
// if fn returns false.
func (v *View) Each(fn func(offset int64) bool) {
	n := len(v.Shape)
	if n == 0 {
		fn(0)
		return
	}
	strides := v.elementStrides()
	nest := v.nestOrder()
	idx := make([]int64, n)
	for a, t := range v.Sel {
		idx[a] = t.Start
	}
	elemSize := int64(v.Dtype.Size())

	var walk func(depth int) bool
	walk = func(depth int) bool {
		if depth == n {
			var off int64
			for a := 0; a < n; a++ {
				off += idx[a] * strides[a]
			}
			return fn(off * elemSize)
		}
		axis := nest[depth]
		t := v.Sel[axis]
		for i := t.Start; i < t.End; i += t.Stride {
			idx[axis] = i
			if !walk(depth + 1) {
				return false
			}
		}
		return true
	}
	walk(0)
}

// SelectInto copies the selected sub-array into dst (which must be
// exactly len(v.OutShape()-elements) * element-size bytes long) in
// C (row-major) order, regardless of v.Order.
func (v *View) SelectInto(dst []byte) {
	n := len(v.Shape)
	elemSize := v.Dtype.Size()
	if n == 0 {
		copy(dst, v.Buf[:elemSize])
		return
	}
	strides := v.elementStrides()
	out := make([]int64, n)
	var pos int

	var walk func(depth int)
	walk = func(depth int) {
		if depth == n {
			var off int64
			for a := 0; a < n; a++ {
				srcIdx := v.Sel[a].Start + out[a]*v.Sel[a].Stride
				off += srcIdx * strides[a]
			}
			off *= int64(elemSize)
			copy(dst[pos:pos+elemSize], v.Buf[off:off+int64(elemSize)])
			pos += elemSize
			return
		}
		count := v.Sel[depth].End - v.Sel[depth].Start
		count = (count + v.Sel[depth].Stride - 1) / v.Sel[depth].Stride
		for i := int64(0); i < count; i++ {
			out[depth] = i
			walk(depth + 1)
		}
	}
	walk(0)
}
