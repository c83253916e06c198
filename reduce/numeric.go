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

// Package reduce implements the count/sum/min/max/select reductions
// over a typed array.View, dispatched across the six numeric dtypes.
package reduce

import (
	"encoding/binary"
	"math"
)

// Number is the set of element types a reduction kernel can run over.
type Number interface {
	~int32 | ~int64 | ~uint32 | ~uint64 | ~float32 | ~float64
}

func readInt32(buf []byte, off int64) int32 { return int32(binary.NativeEndian.Uint32(buf[off:])) }
func readInt64(buf []byte, off int64) int64 { return int64(binary.NativeEndian.Uint64(buf[off:])) }
func readUint32(buf []byte, off int64) uint32 {
	return binary.NativeEndian.Uint32(buf[off:])
}
func readUint64(buf []byte, off int64) uint64 {
	return binary.NativeEndian.Uint64(buf[off:])
}
func readFloat32(buf []byte, off int64) float32 {
	return math.Float32frombits(binary.NativeEndian.Uint32(buf[off:]))
}
func readFloat64(buf []byte, off int64) float64 {
	return math.Float64frombits(binary.NativeEndian.Uint64(buf[off:]))
}

func writeInt32(dst []byte, off int64, v int32) {
	binary.NativeEndian.PutUint32(dst[off:], uint32(v))
}
func writeInt64(dst []byte, off int64, v int64) {
	binary.NativeEndian.PutUint64(dst[off:], uint64(v))
}
func writeUint32(dst []byte, off int64, v uint32) { binary.NativeEndian.PutUint32(dst[off:], v) }
func writeUint64(dst []byte, off int64, v uint64) { binary.NativeEndian.PutUint64(dst[off:], v) }
func writeFloat32(dst []byte, off int64, v float32) {
	binary.NativeEndian.PutUint32(dst[off:], math.Float32bits(v))
}
func writeFloat64(dst []byte, off int64, v float64) {
	binary.NativeEndian.PutUint64(dst[off:], math.Float64bits(v))
}

func toFloat64Int32(v int32) float64     { return float64(v) }
func toFloat64Int64(v int64) float64     { return float64(v) }
func toFloat64Uint32(v uint32) float64   { return float64(v) }
func toFloat64Uint64(v uint64) float64   { return float64(v) }
func toFloat64Float32(v float32) float64 { return float64(v) }
func toFloat64Float64(v float64) float64 { return v }
