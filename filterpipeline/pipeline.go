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

// Package filterpipeline turns the raw bytes fetched from storage
// into the plain bytes of the declared array, still in the source's
// byte order: decompress (if requested), then invert filters in
// reverse order (only "shuffle" is defined). When neither compression nor
// a filter is requested, the input buffer is returned unchanged, so
// the address a kernel reads from is the address the fetcher returned.
package filterpipeline

import (
	"fmt"

	"github.com/stackhpc/activestorage-go/compr"
)

// Filter names one invertible pre-storage transform.
type Filter struct {
	// Name is the filter name ("shuffle" is the only one defined).
	Name string
	// ElementSize is the "element_size" parameter for shuffle.
	ElementSize int
}

// Request is the subset of a reduction request that determines the
// filter pipeline: an optional compression algorithm name and an
// ordered list of filters, applied to the object in this order and
// inverted in the reverse order.
type Request struct {
	Compression string
	Filters     []Filter
}

// DecompressionFailedError wraps a lower-level decompression error.
type DecompressionFailedError struct {
	Algorithm string
	Err       error
}

func (e *DecompressionFailedError) Error() string {
	return fmt.Sprintf("decompression failed (%s): %v", e.Algorithm, e.Err)
}

func (e *DecompressionFailedError) Unwrap() error { return e.Err }

// FilterFailedError reports an unsupported or malformed filter.
type FilterFailedError struct {
	Name   string
	Reason string
}

func (e *FilterFailedError) Error() string {
	return fmt.Sprintf("filter %q failed: %s", e.Name, e.Reason)
}

// ShuffleSizeMismatchError is returned when a shuffled buffer's
// length is not a multiple of the filter's element_size.
type ShuffleSizeMismatchError struct {
	Length      int
	ElementSize int
}

func (e *ShuffleSizeMismatchError) Error() string {
	return fmt.Sprintf("shuffle: buffer length %d is not a multiple of element_size %d", e.Length, e.ElementSize)
}

// Run applies decompression (if req.Compression is set) followed by
// the inverse of each filter in req.Filters, walked in reverse
// order. When req.Compression is empty and req.Filters is empty,
// Run returns src unmodified (same backing array, same address) so
// that a zero-copy caller can assert pointer identity against what
// the fetcher returned.
func Run(req Request, src []byte) ([]byte, error) {
	buf := src

	if req.Compression != "" {
		d := compr.Decompression(req.Compression)
		if d == nil {
			return nil, &FilterFailedError{Name: req.Compression, Reason: "unsupported compression algorithm"}
		}
		out, err := d.Decompress(buf)
		if err != nil {
			return nil, &DecompressionFailedError{Algorithm: req.Compression, Err: err}
		}
		buf = out
	}

	for i := len(req.Filters) - 1; i >= 0; i-- {
		f := req.Filters[i]
		var err error
		buf, err = invert(f, buf)
		if err != nil {
			return nil, err
		}
	}

	return buf, nil
}

// invert applies the inverse of filter f to buf.
func invert(f Filter, buf []byte) ([]byte, error) {
	switch f.Name {
	case "shuffle":
		return unshuffle(buf, f.ElementSize)
	default:
		return nil, &FilterFailedError{Name: f.Name, Reason: "unsupported filter"}
	}
}

// unshuffle inverts the HDF5 byte-shuffle filter: the forward
// transform groups the k-th byte of every element together, so the
// inverse scatters them back. For a buffer of N = s*n bytes (s =
// element_size, n = element count), output[i] = input[(i mod
// s)*n + (i div s)].
func unshuffle(buf []byte, elementSize int) ([]byte, error) {
	if elementSize <= 0 {
		return nil, &FilterFailedError{Name: "shuffle", Reason: "element_size must be positive"}
	}
	if elementSize == 1 {
		return buf, nil
	}
	n := len(buf) / elementSize
	if n*elementSize != len(buf) {
		return nil, &ShuffleSizeMismatchError{Length: len(buf), ElementSize: elementSize}
	}
	out := make([]byte, len(buf))
	for i := 0; i < len(buf); i++ {
		s := elementSize
		out[i] = buf[(i%s)*n+(i/s)]
	}
	return out, nil
}
