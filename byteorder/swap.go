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

// Package byteorder normalizes multi-byte scalars in a raw
// buffer to the host's native byte order, in place.
package byteorder

import (
	"unsafe"

	"github.com/stackhpc/activestorage-go/array"
)

// Host is the byte order of the machine this binary is
// running on, as observed at init time.
var Host array.ByteOrder

func init() {
	var x uint16 = 1
	b := (*[2]byte)(unsafe.Pointer(&x))
	if b[0] == 1 {
		Host = array.LittleEndian
	} else {
		Host = array.BigEndian
	}
}

// Swap reverses every run of size contiguous bytes in buf, in place.
// size must be 1, 2, 4, or 8; len(buf) must be a multiple of size.
//
// Swap is its own inverse: calling it twice on the same buffer
// restores the original contents.
func Swap(buf []byte, size int) {
	if size <= 1 {
		return
	}
	for i := 0; i+size <= len(buf); i += size {
		run := buf[i : i+size : i+size]
		for lo, hi := 0, size-1; lo < hi; lo, hi = lo+1, hi-1 {
			run[lo], run[hi] = run[hi], run[lo]
		}
	}
}

// Normalize swaps buf in place if order differs from Host, so that
// every element of the given dtype is left in host byte order.
// It is a no-op (and performs no I/O or allocation) when order
// already matches Host.
func Normalize(buf []byte, dtype array.Dtype, order array.ByteOrder) {
	if order == Host {
		return
	}
	Swap(buf, dtype.Size())
}
