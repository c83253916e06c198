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

// Package mask translates a request's missing-data specification
// into a per-element admission predicate.
package mask

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/stackhpc/activestorage-go/array"
)

// Spec is the (at most one populated field) missing-data
// specification carried in a request. Thresholds are carried as
// json.Number rather than float64 so that Build can parse them in
// the declared dtype's own domain instead of losing precision to an
// intermediate float64 cast (relevant for int64/uint64, whose range
// exceeds what a float64 mantissa can represent exactly).
type Spec struct {
	MissingValue  *json.Number
	MissingValues []json.Number
	ValidMin      *json.Number
	ValidMax      *json.Number
	ValidRange    *[2]json.Number
}

// InvalidMissingError is returned when more than one key of Spec
// is populated.
type InvalidMissingError struct{}

func (InvalidMissingError) Error() string { return "more than one missing-data key specified" }

// count returns the number of populated keys in s.
func (s Spec) count() int {
	n := 0
	if s.MissingValue != nil {
		n++
	}
	if s.MissingValues != nil {
		n++
	}
	if s.ValidMin != nil {
		n++
	}
	if s.ValidMax != nil {
		n++
	}
	if s.ValidRange != nil {
		n++
	}
	return n
}

// Mask is a per-element admission predicate, evaluated in whichever
// domain matches the dtype it was built for.
type Mask struct {
	admit       func(v float64) bool
	admitInt64  func(v int64) bool
	admitUint64 func(v uint64) bool
}

// always admits every value; it is the Mask for an absent spec.
var always = Mask{admit: func(float64) bool { return true }}

// Build compiles s into a Mask for dtype. An empty Spec produces a
// Mask that always admits. int64 and uint64 get comparison functions
// evaluated in their own integer domain; every other dtype is
// compared as float64 (exact for int32/uint32, native for float32/64).
func Build(s Spec, dtype array.Dtype) (Mask, error) {
	switch s.count() {
	case 0:
		return always, nil
	case 1:
		// exactly one key set; fall through below
	default:
		return Mask{}, InvalidMissingError{}
	}
	switch dtype {
	case array.Int64:
		return buildInt64(s)
	case array.Uint64:
		return buildUint64(s)
	default:
		return buildFloat64(s)
	}
}

func buildFloat64(s Spec) (Mask, error) {
	switch {
	case s.MissingValue != nil:
		v, err := s.MissingValue.Float64()
		if err != nil {
			return Mask{}, err
		}
		return Mask{admit: func(x float64) bool {
			return !isNaN(x) && x != v
		}}, nil
	case s.MissingValues != nil:
		set := make(map[float64]struct{}, len(s.MissingValues))
		for _, n := range s.MissingValues {
			v, err := n.Float64()
			if err != nil {
				return Mask{}, err
			}
			set[v] = struct{}{}
		}
		return Mask{admit: func(x float64) bool {
			if isNaN(x) {
				return false
			}
			_, missing := set[x]
			return !missing
		}}, nil
	case s.ValidMin != nil:
		lo, err := s.ValidMin.Float64()
		if err != nil {
			return Mask{}, err
		}
		return Mask{admit: func(x float64) bool {
			return !isNaN(x) && x >= lo
		}}, nil
	case s.ValidMax != nil:
		hi, err := s.ValidMax.Float64()
		if err != nil {
			return Mask{}, err
		}
		return Mask{admit: func(x float64) bool {
			return !isNaN(x) && x <= hi
		}}, nil
	case s.ValidRange != nil:
		lo, err := s.ValidRange[0].Float64()
		if err != nil {
			return Mask{}, err
		}
		hi, err := s.ValidRange[1].Float64()
		if err != nil {
			return Mask{}, err
		}
		return Mask{admit: func(x float64) bool {
			return !isNaN(x) && x >= lo && x <= hi
		}}, nil
	}
	return Mask{}, fmt.Errorf("mask.buildFloat64: unreachable")
}

func buildInt64(s Spec) (Mask, error) {
	switch {
	case s.MissingValue != nil:
		v, err := s.MissingValue.Int64()
		if err != nil {
			return Mask{}, err
		}
		return Mask{admitInt64: func(x int64) bool { return x != v }}, nil
	case s.MissingValues != nil:
		set := make(map[int64]struct{}, len(s.MissingValues))
		for _, n := range s.MissingValues {
			v, err := n.Int64()
			if err != nil {
				return Mask{}, err
			}
			set[v] = struct{}{}
		}
		return Mask{admitInt64: func(x int64) bool {
			_, missing := set[x]
			return !missing
		}}, nil
	case s.ValidMin != nil:
		lo, err := s.ValidMin.Int64()
		if err != nil {
			return Mask{}, err
		}
		return Mask{admitInt64: func(x int64) bool { return x >= lo }}, nil
	case s.ValidMax != nil:
		hi, err := s.ValidMax.Int64()
		if err != nil {
			return Mask{}, err
		}
		return Mask{admitInt64: func(x int64) bool { return x <= hi }}, nil
	case s.ValidRange != nil:
		lo, err := s.ValidRange[0].Int64()
		if err != nil {
			return Mask{}, err
		}
		hi, err := s.ValidRange[1].Int64()
		if err != nil {
			return Mask{}, err
		}
		return Mask{admitInt64: func(x int64) bool { return x >= lo && x <= hi }}, nil
	}
	return Mask{}, fmt.Errorf("mask.buildInt64: unreachable")
}

func buildUint64(s Spec) (Mask, error) {
	switch {
	case s.MissingValue != nil:
		v, err := parseUint64(*s.MissingValue)
		if err != nil {
			return Mask{}, err
		}
		return Mask{admitUint64: func(x uint64) bool { return x != v }}, nil
	case s.MissingValues != nil:
		set := make(map[uint64]struct{}, len(s.MissingValues))
		for _, n := range s.MissingValues {
			v, err := parseUint64(n)
			if err != nil {
				return Mask{}, err
			}
			set[v] = struct{}{}
		}
		return Mask{admitUint64: func(x uint64) bool {
			_, missing := set[x]
			return !missing
		}}, nil
	case s.ValidMin != nil:
		lo, err := parseUint64(*s.ValidMin)
		if err != nil {
			return Mask{}, err
		}
		return Mask{admitUint64: func(x uint64) bool { return x >= lo }}, nil
	case s.ValidMax != nil:
		hi, err := parseUint64(*s.ValidMax)
		if err != nil {
			return Mask{}, err
		}
		return Mask{admitUint64: func(x uint64) bool { return x <= hi }}, nil
	case s.ValidRange != nil:
		lo, err := parseUint64(s.ValidRange[0])
		if err != nil {
			return Mask{}, err
		}
		hi, err := parseUint64(s.ValidRange[1])
		if err != nil {
			return Mask{}, err
		}
		return Mask{admitUint64: func(x uint64) bool { return x >= lo && x <= hi }}, nil
	}
	return Mask{}, fmt.Errorf("mask.buildUint64: unreachable")
}

func parseUint64(n json.Number) (uint64, error) {
	return strconv.ParseUint(n.String(), 10, 64)
}

// Admit reports whether v counts towards a reduction, comparing in
// the float64 domain. Used for int32/uint32/float32/float64 dtypes,
// for which a float64 comparison is exact or native.
func (m Mask) Admit(v float64) bool {
	if m.admit == nil {
		return always.admit(v)
	}
	return m.admit(v)
}

// AdmitInt64 reports whether v counts towards a reduction, comparing
// in the int64 domain so thresholds near the range boundary are
// never rounded to a neighboring value.
func (m Mask) AdmitInt64(v int64) bool {
	if m.admitInt64 == nil {
		return m.Admit(float64(v))
	}
	return m.admitInt64(v)
}

// AdmitUint64 reports whether v counts towards a reduction, comparing
// in the uint64 domain for the same reason as AdmitInt64.
func (m Mask) AdmitUint64(v uint64) bool {
	if m.admitUint64 == nil {
		return m.Admit(float64(v))
	}
	return m.admitUint64(v)
}

func isNaN(f float64) bool {
	return f != f
}
