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

package reduce

import (
	"fmt"

	"github.com/stackhpc/activestorage-go/array"
	"github.com/stackhpc/activestorage-go/mask"
)

// Op names a supported reduction.
type Op uint8

const (
	Count Op = iota
	Sum
	Min
	Max
	Select
)

func (o Op) String() string {
	switch o {
	case Count:
		return "count"
	case Sum:
		return "sum"
	case Min:
		return "min"
	case Max:
		return "max"
	case Select:
		return "select"
	default:
		return fmt.Sprintf("<Op=%d>", uint8(o))
	}
}

// EmptyReductionError is returned by min/max when no element of the
// selection is admitted by the mask.
type EmptyReductionError struct{ Op Op }

func (e *EmptyReductionError) Error() string {
	return fmt.Sprintf("%s: no elements admitted by mask", e.Op)
}

// Result is the outcome of running a reduction: the raw host-byte-order
// body, its dtype and shape, and the number of elements that actually
// participated.
type Result struct {
	Body  []byte
	Dtype array.Dtype
	Shape array.Shape
	Count int64
}

// genericReduce runs the count/sum/min/max reductions for one
// numeric type T, given an accessor for reading elements, an admit
// predicate evaluated directly in T's own domain (so int64/uint64
// thresholds near the range boundary are never rounded through an
// intermediate float64), and a float64 conversion used only to
// detect NaN for min/max.
func genericReduce[T Number](op Op, v *array.View, admit func(T) bool, read func([]byte, int64) T, toFloat func(T) float64) (sum T, lo T, hi T, count int64, admittedAny bool) {
	first := true
	v.Each(func(off int64) bool {
		val := read(v.Buf, off)
		if !admit(val) {
			return true
		}
		switch op {
		case Count:
			count++
		case Sum:
			sum += val
			count++
		case Min, Max:
			if f := toFloat(val); f != f { // NaN is never admissible for min/max
				return true
			}
			if first {
				lo, hi = val, val
				first = false
				admittedAny = true
			} else {
				if val < lo {
					lo = val
				}
				if val > hi {
					hi = val
				}
			}
			count++
		}
		return true
	})
	return
}

// Run executes op over v under mask m and returns the result.
func Run(op Op, v *array.View, m mask.Mask) (*Result, error) {
	if op == Select {
		return runSelect(v), nil
	}
	switch v.Dtype {
	case array.Int32:
		admit := func(x int32) bool { return m.Admit(toFloat64Int32(x)) }
		return runNumeric(op, v, admit, readInt32, writeInt32, toFloat64Int32)
	case array.Int64:
		return runNumeric(op, v, m.AdmitInt64, readInt64, writeInt64, toFloat64Int64)
	case array.Uint32:
		admit := func(x uint32) bool { return m.Admit(toFloat64Uint32(x)) }
		return runNumeric(op, v, admit, readUint32, writeUint32, toFloat64Uint32)
	case array.Uint64:
		return runNumeric(op, v, m.AdmitUint64, readUint64, writeUint64, toFloat64Uint64)
	case array.Float32:
		admit := func(x float32) bool { return m.Admit(toFloat64Float32(x)) }
		return runNumeric(op, v, admit, readFloat32, writeFloat32, toFloat64Float32)
	case array.Float64:
		return runNumeric(op, v, m.Admit, readFloat64, writeFloat64, toFloat64Float64)
	default:
		return nil, fmt.Errorf("reduce.Run: unsupported dtype %v", v.Dtype)
	}
}

func runNumeric[T Number](op Op, v *array.View, admit func(T) bool, read func([]byte, int64) T, write func([]byte, int64, T), toFloat func(T) float64) (*Result, error) {
	sum, lo, hi, count, admittedAny := genericReduce(op, v, admit, read, toFloat)

	switch op {
	case Count:
		body := make([]byte, 8)
		writeInt64(body, 0, count)
		return &Result{Body: body, Dtype: array.Int64, Shape: array.Shape{}, Count: count}, nil
	case Sum:
		body := make([]byte, v.Dtype.Size())
		write(body, 0, sum)
		return &Result{Body: body, Dtype: v.Dtype, Shape: array.Shape{}, Count: count}, nil
	case Min:
		if !admittedAny {
			return nil, &EmptyReductionError{Op: Min}
		}
		body := make([]byte, v.Dtype.Size())
		write(body, 0, lo)
		return &Result{Body: body, Dtype: v.Dtype, Shape: array.Shape{}, Count: count}, nil
	case Max:
		if !admittedAny {
			return nil, &EmptyReductionError{Op: Max}
		}
		body := make([]byte, v.Dtype.Size())
		write(body, 0, hi)
		return &Result{Body: body, Dtype: v.Dtype, Shape: array.Shape{}, Count: count}, nil
	default:
		return nil, fmt.Errorf("reduce.runNumeric: unsupported op %v", op)
	}
}

func runSelect(v *array.View) *Result {
	out := v.OutShape()
	body := make([]byte, v.Dtype.Size()*int(out.NumElements()))
	v.SelectInto(body)
	return &Result{Body: body, Dtype: v.Dtype, Shape: out, Count: out.NumElements()}
}

// ParseOp maps an HTTP route suffix to an Op.
func ParseOp(name string) (Op, bool) {
	switch name {
	case "count":
		return Count, true
	case "sum":
		return Sum, true
	case "min":
		return Min, true
	case "max":
		return Max, true
	case "select":
		return Select, true
	default:
		return 0, false
	}
}
