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

package orchestrate

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/stackhpc/activestorage-go/apierr"
	"github.com/stackhpc/activestorage-go/fetch"
	"github.com/stackhpc/activestorage-go/reduce"
	"github.com/stackhpc/activestorage-go/resource"
)

func objectServer(t *testing.T, body []byte) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	}))
}

func newOrchestrator() *Orchestrator {
	return New(resource.NewManager(resource.Config{MemoryBytes: 1 << 30, S3Conns: 8, CPUTasks: 4}))
}

// S1: sum over four little-endian int32s with no filters.
func TestScenarioSum(t *testing.T) {
	body := []byte{1, 0, 0, 0, 2, 0, 0, 0, 3, 0, 0, 0, 4, 0, 0, 0}
	srv := objectServer(t, body)
	defer srv.Close()

	o := newOrchestrator()
	req := &RequestData{Source: srv.URL, Bucket: "bucket-one", Object: "o", Dtype: "int32", Shape: []int64{4}}
	out, err := o.Run(context.Background(), reduce.Sum, req, fetch.Credentials{})
	if err != nil {
		t.Fatal(err)
	}
	if !out.ZeroCopy {
		t.Fatal("expected zero-copy for request with no compression/filters")
	}
	want := []byte{10, 0, 0, 0}
	if !bytes.Equal(out.Body, want) {
		t.Fatalf("body = %v, want %v", out.Body, want)
	}
	if out.Count != 4 {
		t.Fatalf("count = %d, want 4", out.Count)
	}
}

// S2: count with a missing_value mask.
func TestScenarioCountWithMissing(t *testing.T) {
	body := []byte{1, 0, 0, 0, 2, 0, 0, 0, 3, 0, 0, 0, 4, 0, 0, 0}
	srv := objectServer(t, body)
	defer srv.Close()

	o := newOrchestrator()
	missingVal := json.Number("2")
	req := &RequestData{
		Source: srv.URL, Bucket: "bucket-one", Object: "o",
		Dtype: "int32", Shape: []int64{4},
		Missing: &MissingSpec{MissingValue: &missingVal},
	}
	out, err := o.Run(context.Background(), reduce.Count, req, fetch.Credentials{})
	if err != nil {
		t.Fatal(err)
	}
	var got int64
	if err := binary.Read(bytes.NewReader(out.Body), nativeOrder(), &got); err != nil {
		t.Fatal(err)
	}
	if got != 3 {
		t.Fatalf("count body = %d, want 3", got)
	}
	if out.Count != 3 {
		t.Fatalf("Result.Count = %d, want 3", out.Count)
	}
}

// S3: select with a strided 2D selection always outputs C order.
func TestScenarioSelect2D(t *testing.T) {
	body := []byte{0, 0, 0, 0, 1, 0, 0, 0, 2, 0, 0, 0, 3, 0, 0, 0}
	srv := objectServer(t, body)
	defer srv.Close()

	o := newOrchestrator()
	req := &RequestData{
		Source: srv.URL, Bucket: "bucket-one", Object: "o",
		Dtype: "uint32", Shape: []int64{2, 2}, Order: "C",
		Selection: [][3]int64{{0, 2, 1}, {1, 2, 1}},
	}
	out, err := o.Run(context.Background(), reduce.Select, req, fetch.Credentials{})
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{1, 0, 0, 0, 3, 0, 0, 0}
	if !bytes.Equal(out.Body, want) {
		t.Fatalf("body = %v, want %v", out.Body, want)
	}
	if len(out.Shape) != 2 || out.Shape[0] != 2 || out.Shape[1] != 1 {
		t.Fatalf("shape = %v, want [2 1]", out.Shape)
	}
	if out.Count != 2 {
		t.Fatalf("count = %d, want 2", out.Count)
	}
}

// S4: max ignores NaN even with no mask configured.
func TestScenarioMaxIgnoresNaN(t *testing.T) {
	vals := []float32{1.5, float32(math.NaN()), 9.25, -3}
	body := make([]byte, 4*4)
	for i, v := range vals {
		nativeOrder().PutUint32(body[i*4:], math.Float32bits(v))
	}
	srv := objectServer(t, body)
	defer srv.Close()

	o := newOrchestrator()
	req := &RequestData{Source: srv.URL, Bucket: "bucket-one", Object: "o", Dtype: "float32", Shape: []int64{4}}
	out, err := o.Run(context.Background(), reduce.Max, req, fetch.Credentials{})
	if err != nil {
		t.Fatal(err)
	}
	got := math.Float32frombits(nativeOrder().Uint32(out.Body))
	if got != 9.25 {
		t.Fatalf("max = %v, want 9.25", got)
	}
	if out.Count != 3 {
		t.Fatalf("count = %d, want 3 (NaN excluded)", out.Count)
	}
}

// S5: gzip-compressed payload, sum over the decompressed ints.
func TestScenarioGzipSum(t *testing.T) {
	plain := []byte{10, 0, 0, 0, 20, 0, 0, 0, 30, 0, 0, 0, 40, 0, 0, 0}
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	w.Write(plain)
	w.Close()

	srv := objectServer(t, buf.Bytes())
	defer srv.Close()

	o := newOrchestrator()
	req := &RequestData{
		Source: srv.URL, Bucket: "bucket-one", Object: "o",
		Dtype: "int32", Shape: []int64{4}, Compression: "gzip",
	}
	out, err := o.Run(context.Background(), reduce.Sum, req, fetch.Credentials{})
	if err != nil {
		t.Fatal(err)
	}
	if out.ZeroCopy {
		t.Fatal("gzip-compressed request must not be zero-copy")
	}
	want := []byte{100, 0, 0, 0}
	if !bytes.Equal(out.Body, want) {
		t.Fatalf("body = %v, want %v", out.Body, want)
	}
	if out.Count != 4 {
		t.Fatalf("count = %d, want 4", out.Count)
	}
}

// S6: memory admission rejects a request whose size exceeds capacity.
func TestScenarioMemoryLimitExceeded(t *testing.T) {
	srv := objectServer(t, make([]byte, 16))
	defer srv.Close()

	o := New(resource.NewManager(resource.Config{MemoryBytes: 8, S3Conns: 1, CPUTasks: 1}))
	req := &RequestData{Source: srv.URL, Bucket: "bucket-one", Object: "o", Dtype: "int32", Shape: []int64{4}, Size: 16}
	_, err := o.Run(context.Background(), reduce.Sum, req, fetch.Credentials{})
	if err == nil {
		t.Fatal("expected MemoryLimitExceeded")
	}
	if apierr.As(err).Kind != apierr.MemoryLimitExceeded {
		t.Fatalf("Kind = %v, want MemoryLimitExceeded", apierr.As(err).Kind)
	}
}

// A shuffle filter's element_size must match the declared dtype's
// element size, even when it evenly divides the buffer length.
func TestShuffleElementSizeMustMatchDtype(t *testing.T) {
	srv := objectServer(t, make([]byte, 16))
	defer srv.Close()

	o := newOrchestrator()
	req := &RequestData{
		Source: srv.URL, Bucket: "bucket-one", Object: "o",
		Dtype: "int64", Shape: []int64{2},
		Filters: []FilterSpec{{ID: "shuffle", ElementSize: 4}},
	}
	_, err := o.Run(context.Background(), reduce.Sum, req, fetch.Credentials{})
	if err == nil {
		t.Fatal("expected ShuffleSizeMismatch")
	}
	if apierr.As(err).Kind != apierr.ShuffleSizeMismatch {
		t.Fatalf("Kind = %v, want ShuffleSizeMismatch", apierr.As(err).Kind)
	}
}

func TestEmptyReductionOnAllMissing(t *testing.T) {
	body := []byte{5, 0, 0, 0, 5, 0, 0, 0}
	srv := objectServer(t, body)
	defer srv.Close()

	o := newOrchestrator()
	missingVal := json.Number("5")
	req := &RequestData{
		Source: srv.URL, Bucket: "bucket-one", Object: "o",
		Dtype: "int32", Shape: []int64{2},
		Missing: &MissingSpec{MissingValue: &missingVal},
	}
	_, err := o.Run(context.Background(), reduce.Max, req, fetch.Credentials{})
	if err == nil {
		t.Fatal("expected EmptyReduction")
	}
	if apierr.As(err).Kind != apierr.EmptyReduction {
		t.Fatalf("Kind = %v, want EmptyReduction", apierr.As(err).Kind)
	}
}

func nativeOrder() binary.ByteOrder {
	return binary.NativeEndian
}
