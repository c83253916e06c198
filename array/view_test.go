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

import "testing"

// buf2x3 holds int32 values 0..5 laid out in C (row-major) order for a
// 2x3 shape: row 0 is [0,1,2], row 1 is [3,4,5].
func buf2x3() []byte {
	buf := make([]byte, 6*4)
	for i := 0; i < 6; i++ {
		buf[i*4] = byte(i)
	}
	return buf
}

func readElem(buf []byte, off int64) int32 {
	return int32(buf[off])
}

func TestNewViewRejectsShapeMismatch(t *testing.T) {
	_, err := NewView(make([]byte, 10), Int32, Shape{4}, COrder, nil)
	if _, ok := err.(*ShapeMismatchError); !ok {
		t.Fatalf("err = %v (%T), want *ShapeMismatchError", err, err)
	}
}

func TestNewViewRejectsInvalidSelection(t *testing.T) {
	_, err := NewView(make([]byte, 16), Int32, Shape{4}, COrder, Selection{{Start: 0, End: 10, Stride: 1}})
	if _, ok := err.(*InvalidSelectionError); !ok {
		t.Fatalf("err = %v (%T), want *InvalidSelectionError", err, err)
	}
}

func TestEachCOrderVisitsRowMajor(t *testing.T) {
	v, err := NewView(buf2x3(), Int32, Shape{2, 3}, COrder, nil)
	if err != nil {
		t.Fatal(err)
	}
	var got []int32
	v.Each(func(off int64) bool {
		got = append(got, readElem(v.Buf, off))
		return true
	})
	want := []int32{0, 1, 2, 3, 4, 5}
	if !equalInt32(got, want) {
		t.Fatalf("C-order visitation = %v, want %v", got, want)
	}
}

// A full (unselected) scan visits every address in increasing order
// regardless of Order, since elementStrides and nestOrder are built
// to match each other for a complete axis. Order's effect on
// visitation sequence only shows up once a selection leaves gaps in
// an axis, so these two tests select every other row of a 4x3 array
// and compare C- vs F-order's differing address sequences directly.
func elems12() []byte {
	buf := make([]byte, 12*4)
	for i := 0; i < 12; i++ {
		buf[i*4] = byte(i)
	}
	return buf
}

func TestEachCOrderNestOrderWithGappedSelection(t *testing.T) {
	v, err := NewView(elems12(), Int32, Shape{4, 3}, COrder, Selection{
		{Start: 0, End: 4, Stride: 2}, // rows 0, 2
		{Start: 0, End: 3, Stride: 1}, // every column
	})
	if err != nil {
		t.Fatal(err)
	}
	var got []int32
	v.Each(func(off int64) bool {
		got = append(got, readElem(v.Buf, off))
		return true
	})
	// C strides for shape {4,3} are [3,1]; nest visits axis 0 (rows)
	// outermost: row 0 -> elements 0,1,2, row 2 -> elements 6,7,8.
	want := []int32{0, 1, 2, 6, 7, 8}
	if !equalInt32(got, want) {
		t.Fatalf("C-order gapped visitation = %v, want %v", got, want)
	}
}

func TestEachFOrderNestOrderWithGappedSelection(t *testing.T) {
	v, err := NewView(elems12(), Int32, Shape{4, 3}, FOrder, Selection{
		{Start: 0, End: 4, Stride: 2}, // rows 0, 2
		{Start: 0, End: 3, Stride: 1}, // every column
	})
	if err != nil {
		t.Fatal(err)
	}
	var got []int32
	v.Each(func(off int64) bool {
		got = append(got, readElem(v.Buf, off))
		return true
	})
	// F strides for shape {4,3} are [1,4]; nest visits axis 1
	// (columns) outermost and axis 0 (rows) innermost, so the two
	// selected rows (0 and 2) interleave within each column: column 0
	// -> elements 0,2, column 1 -> elements 4,6, column 2 -> 8,10.
	want := []int32{0, 2, 4, 6, 8, 10}
	if !equalInt32(got, want) {
		t.Fatalf("F-order gapped visitation = %v, want %v", got, want)
	}
	if equalInt32(got, []int32{0, 1, 2, 6, 7, 8}) {
		t.Fatal("F-order and C-order produced the same sequence for a gapped selection; nestOrder is not being exercised")
	}
}

func TestEachScalarCallsOnce(t *testing.T) {
	v, err := NewView(make([]byte, 4), Int32, Shape{}, COrder, nil)
	if err != nil {
		t.Fatal(err)
	}
	n := 0
	v.Each(func(off int64) bool {
		n++
		if off != 0 {
			t.Errorf("scalar offset = %d, want 0", off)
		}
		return true
	})
	if n != 1 {
		t.Fatalf("Each called fn %d times for a scalar, want 1", n)
	}
}

func TestEachStopsEarly(t *testing.T) {
	v, err := NewView(buf2x3(), Int32, Shape{2, 3}, COrder, nil)
	if err != nil {
		t.Fatal(err)
	}
	n := 0
	v.Each(func(off int64) bool {
		n++
		return n < 3
	})
	if n != 3 {
		t.Fatalf("Each visited %d elements after an early stop, want 3", n)
	}
}

func TestEachRespectsStridedSelection(t *testing.T) {
	v, err := NewView(buf2x3(), Int32, Shape{2, 3}, COrder, Selection{
		{Start: 0, End: 2, Stride: 1},
		{Start: 0, End: 3, Stride: 2},
	})
	if err != nil {
		t.Fatal(err)
	}
	var got []int32
	v.Each(func(off int64) bool {
		got = append(got, readElem(v.Buf, off))
		return true
	})
	// columns 0 and 2 of each row: row0 -> 0,2 ; row1 -> 3,5
	want := []int32{0, 2, 3, 5}
	if !equalInt32(got, want) {
		t.Fatalf("strided selection visitation = %v, want %v", got, want)
	}
}

func TestSelectIntoWholeArrayMatchesCOrder(t *testing.T) {
	v, err := NewView(buf2x3(), Int32, Shape{2, 3}, COrder, nil)
	if err != nil {
		t.Fatal(err)
	}
	out := v.OutShape()
	dst := make([]byte, Int32.Size()*int(out.NumElements()))
	v.SelectInto(dst)
	for i := 0; i < 6; i++ {
		if dst[i*4] != byte(i) {
			t.Fatalf("dst[%d] = %d, want %d", i*4, dst[i*4], i)
		}
	}
}

func TestSelectIntoSelection(t *testing.T) {
	v, err := NewView(buf2x3(), Int32, Shape{2, 3}, COrder, Selection{
		{Start: 1, End: 2, Stride: 1},
		{Start: 0, End: 3, Stride: 1},
	})
	if err != nil {
		t.Fatal(err)
	}
	out := v.OutShape()
	if out.NumElements() != 3 {
		t.Fatalf("out shape = %v, want 3 elements", out)
	}
	dst := make([]byte, Int32.Size()*int(out.NumElements()))
	v.SelectInto(dst)
	want := []int32{3, 4, 5}
	for i, w := range want {
		if int32(dst[i*4]) != w {
			t.Fatalf("dst[%d] = %d, want %d", i, dst[i*4], w)
		}
	}
}

func equalInt32(a, b []int32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
