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

// Package compr provides a unified interface wrapping
// third-party compression libraries.
package compr

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// Decompressor is the interface a filter pipeline stage uses to
// turn compressed source bytes into a plain byte slice of unknown
// final length (unlike a fixed-shape codec, gzip/zlib streams don't
// know their decompressed size up front).
type Decompressor interface {
	// Name is the name of the compression algorithm.
	Name() string
	// Decompress decompresses all of src and returns the result.
	Decompress(src []byte) ([]byte, error)
}

type gzipDecompressor struct{}

func (gzipDecompressor) Name() string { return "gzip" }

func (gzipDecompressor) Decompress(src []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	return out, nil
}

type zlibDecompressor struct{}

func (zlibDecompressor) Name() string { return "zlib" }

func (zlibDecompressor) Decompress(src []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("zlib: %w", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("zlib: %w", err)
	}
	return out, nil
}

// Decompression selects a decompression algorithm by the name used
// in a request's "compression" field ("gzip" or "zlib"). It returns
// nil if name is not recognized.
func Decompression(name string) Decompressor {
	switch name {
	case "gzip":
		return gzipDecompressor{}
	case "zlib":
		return zlibDecompressor{}
	default:
		return nil
	}
}
