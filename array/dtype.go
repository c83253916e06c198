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

// Package array describes the typed, strided view over
// raw bytes that the reduction kernels operate on:
// dtypes, byte order, shape, and rectangular selections.
package array

import "fmt"

// Dtype is a fixed-width numeric element type.
type Dtype uint8

const (
	Int32 Dtype = iota
	Int64
	Uint32
	Uint64
	Float32
	Float64
)

// ParseDtype maps a request's lowercase dtype name to a Dtype.
func ParseDtype(name string) (Dtype, error) {
	switch name {
	case "int32":
		return Int32, nil
	case "int64":
		return Int64, nil
	case "uint32":
		return Uint32, nil
	case "uint64":
		return Uint64, nil
	case "float32":
		return Float32, nil
	case "float64":
		return Float64, nil
	default:
		return 0, fmt.Errorf("unknown dtype %q", name)
	}
}

// String returns the lowercase wire name of d, as used in
// the x-activestorage-dtype response header.
func (d Dtype) String() string {
	switch d {
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Uint32:
		return "uint32"
	case Uint64:
		return "uint64"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	default:
		return fmt.Sprintf("<Dtype=%d>", uint8(d))
	}
}

// Size returns the element size of d in bytes.
func (d Dtype) Size() int {
	switch d {
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, Float64:
		return 8
	default:
		panic("invalid dtype")
	}
}

// Float reports whether d is a floating-point type.
func (d Dtype) Float() bool {
	return d == Float32 || d == Float64
}

// ByteOrder is the endianness of multi-byte elements.
type ByteOrder uint8

const (
	// LittleEndian and BigEndian name the two byte orders
	// a request may declare for its source data.
	LittleEndian ByteOrder = iota
	BigEndian
)

func (b ByteOrder) String() string {
	if b == BigEndian {
		return "big"
	}
	return "little"
}

// ParseByteOrder maps a request's byte_order string to a ByteOrder.
func ParseByteOrder(name string) (ByteOrder, error) {
	switch name {
	case "little":
		return LittleEndian, nil
	case "big":
		return BigEndian, nil
	default:
		return 0, fmt.Errorf("unknown byte_order %q", name)
	}
}
