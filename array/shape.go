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

import "fmt"

// Order is the iteration layout of a multi-dimensional array.
type Order uint8

const (
	// COrder is row-major order (last axis fastest).
	COrder Order = iota
	// FOrder is column-major order (first axis fastest).
	FOrder
)

// ParseOrder maps a request's order string to an Order.
func ParseOrder(name string) (Order, error) {
	switch name {
	case "", "C":
		return COrder, nil
	case "F":
		return FOrder, nil
	default:
		return 0, fmt.Errorf("unknown order %q", name)
	}
}

// Shape is an ordered sequence of positive per-axis element counts.
// A nil/empty Shape denotes a scalar.
type Shape []int64

// NumElements returns the product of the axis sizes (1 for a scalar).
func (s Shape) NumElements() int64 {
	n := int64(1)
	for _, d := range s {
		n *= d
	}
	return n
}

// ShapeMismatchError is returned when a buffer's length doesn't
// match element_size * product(shape).
type ShapeMismatchError struct {
	Len         int
	ElementSize int
	Shape       Shape
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("shape mismatch: buffer of %d bytes cannot hold %d elements of size %d",
		e.Len, e.Shape.NumElements(), e.ElementSize)
}

// ValidateRawSize checks that a buffer of the given length can
// hold the declared shape at the declared dtype's element size.
func ValidateRawSize(length int, dtype Dtype, shape Shape) error {
	want := dtype.Size() * int(shape.NumElements())
	if want != length {
		return &ShapeMismatchError{Len: length, ElementSize: dtype.Size(), Shape: shape}
	}
	return nil
}

// Triple is one axis's [start, end, stride) selection.
type Triple struct {
	Start, End, Stride int64
}

// Selection is one Triple per axis of Shape, or nil for "whole array".
type Selection []Triple

// InvalidSelectionError is returned when a selection triple violates
// the bounds of its corresponding axis.
type InvalidSelectionError struct {
	Axis    int
	Triple  Triple
	AxisLen int64
}

func (e *InvalidSelectionError) Error() string {
	return fmt.Sprintf("invalid selection on axis %d: [%d,%d,%d) against dimension %d",
		e.Axis, e.Triple.Start, e.Triple.End, e.Triple.Stride, e.AxisLen)
}

// Validate checks sel against shape: one Triple per axis, with
// 0 <= start < end <= axis length and stride >= 1.
func (sel Selection) Validate(shape Shape) error {
	if sel == nil {
		return nil
	}
	if len(sel) != len(shape) {
		return fmt.Errorf("selection has %d axes, shape has %d", len(sel), len(shape))
	}
	for i, t := range sel {
		if t.Stride < 1 || t.Start < 0 || t.Start >= t.End || t.End > shape[i] {
			return &InvalidSelectionError{Axis: i, Triple: t, AxisLen: shape[i]}
		}
	}
	return nil
}

// OutShape returns the per-axis cardinality of sel applied to shape:
// the same as shape itself when sel is nil (whole-array selection).
func (sel Selection) OutShape(shape Shape) Shape {
	if sel == nil {
		out := make(Shape, len(shape))
		copy(out, shape)
		return out
	}
	out := make(Shape, len(sel))
	for i, t := range sel {
		out[i] = (t.End - t.Start + t.Stride - 1) / t.Stride
	}
	return out
}

// full returns the Triple that selects every element of an axis
// of the given length.
func full(length int64) Triple {
	return Triple{Start: 0, End: length, Stride: 1}
}

// Normalize returns sel with a full-axis Triple substituted for
// every axis not covered (i.e. returns a Selection of the same
// length as shape, defaulting to "whole array" when sel is nil).
func (sel Selection) Normalize(shape Shape) Selection {
	if sel != nil {
		return sel
	}
	out := make(Selection, len(shape))
	for i, d := range shape {
		out[i] = full(d)
	}
	return out
}
