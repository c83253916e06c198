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

// Package orchestrate composes the fetcher, filter pipeline,
// byte-order normalizer and reduction kernels into the single
// request execution pipeline, admitting every step against the
// resource manager and releasing permits in reverse acquisition
// order on every exit path.
package orchestrate

import (
	"context"
	"time"

	"github.com/stackhpc/activestorage-go/apierr"
	"github.com/stackhpc/activestorage-go/array"
	"github.com/stackhpc/activestorage-go/byteorder"
	"github.com/stackhpc/activestorage-go/fetch"
	"github.com/stackhpc/activestorage-go/filterpipeline"
	"github.com/stackhpc/activestorage-go/metrics"
	"github.com/stackhpc/activestorage-go/reduce"
	"github.com/stackhpc/activestorage-go/resource"
)

// Orchestrator owns the shared, process-lifetime collaborators: the
// S3 client cache and the resource manager.
type Orchestrator struct {
	Fetcher *fetch.Fetcher
	Manager *resource.Manager
}

// New constructs an Orchestrator with a fresh client cache, bound to
// the given resource manager.
func New(mgr *resource.Manager) *Orchestrator {
	return &Orchestrator{Fetcher: fetch.New(), Manager: mgr}
}

// Outcome is a completed reduction plus the zero-copy observation
// recorded along the way, so callers (tests in particular) can
// assert invariant I1 without reaching into internals.
type Outcome struct {
	*reduce.Result
	ZeroCopy bool // true if compression and filters were both absent and no copy occurred
}

// Run executes op against req, authenticated as creds, following the
// nine steps of the request execution pipeline. ctx governs
// cancellation only while waiting for the S3 connection and CPU-task
// permits. Memory admission never waits, and neither the S3 request
// nor the reduction kernel observes ctx.
func (o *Orchestrator) Run(ctx context.Context, op reduce.Op, req *RequestData, creds fetch.Credentials) (*Outcome, error) {
	start := time.Now()
	metrics.RequestsTotal.WithLabelValues(op.String()).Inc()
	outcome, err := o.run(ctx, op, req, creds)
	metrics.RequestDuration.WithLabelValues(op.String()).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues(string(apierr.As(err).Kind)).Inc()
	}
	return outcome, err
}

func (o *Orchestrator) run(ctx context.Context, op reduce.Op, req *RequestData, creds fetch.Credentials) (*Outcome, error) {
	p, err := req.validate()
	if err != nil {
		return nil, err
	}

	// Step 1: acquire memory permit for req.Size (or 0 when unknown;
	// such requests are best-effort per spec §4.7).
	releaseMem, err := o.Manager.Memory(req.Size)
	if err != nil {
		return nil, err
	}
	defer releaseMem()

	// Step 2+3: resolve/create the S3 client and fetch bytes, held
	// under an S3 connection permit for the duration of the I/O.
	releaseConn, err := o.Manager.S3Connection(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := fetch.Fetch(o.Fetcher, fetch.Object{
		Source: req.Source,
		Bucket: req.Bucket,
		Key:    req.Object,
		Offset: req.Offset,
		Size:   req.Size,
	}, creds)
	releaseConn()
	if err != nil {
		return nil, err
	}
	metrics.BytesFetched.Add(float64(len(raw)))

	// Step 4: filter pipeline; assert zero-copy when both
	// compression and filters are absent.
	pipelineReq := filterpipeline.Request{Compression: p.compression, Filters: p.filters}
	buf, err := filterpipeline.Run(pipelineReq, raw)
	if err != nil {
		return nil, wrapPipelineError(err)
	}
	zeroCopy := p.compression == "" && len(p.filters) == 0
	if zeroCopy && len(raw) > 0 && &buf[0] != &raw[0] {
		return nil, apierr.New(apierr.InternalError, "zero-copy invariant violated: filter pipeline copied an untransformed buffer")
	}

	// Step 5: when compression was present or size was unknown, the
	// post-filter length wasn't already validated against shape at
	// fetch time, so validate it now.
	if p.compression != "" || req.Size == 0 {
		if err := array.ValidateRawSize(len(buf), p.dtype, p.shape); err != nil {
			return nil, apierr.New(apierr.ShapeMismatch, err.Error())
		}
	}

	// Step 6: ownership transfer is a no-op in Go (buf is already a
	// mutable, contiguous, owned slice).

	// Step 7: normalize byte order in place.
	byteorder.Normalize(buf, p.dtype, p.byteOrder)

	view, err := array.NewView(buf, p.dtype, p.shape, p.order, p.selection)
	if err != nil {
		return nil, wrapPipelineError(err)
	}

	// Step 8: run the reduction kernel under a CPU-task permit.
	releaseCPU, err := o.Manager.CPUTask(ctx)
	if err != nil {
		return nil, err
	}
	result, err := reduce.Run(op, view, p.mask)
	releaseCPU()
	if err != nil {
		return nil, wrapPipelineError(err)
	}

	return &Outcome{Result: result, ZeroCopy: zeroCopy}, nil
}

// wrapPipelineError maps the typed errors returned by the filter
// pipeline, array, and reduce packages onto the wire taxonomy in
// spec §7. Errors that are already *apierr.Error (e.g. from fetch)
// pass through unchanged.
func wrapPipelineError(err error) error {
	switch e := err.(type) {
	case *apierr.Error:
		return e
	case *filterpipeline.DecompressionFailedError:
		return apierr.New(apierr.DecompressionFailed, e.Error())
	case *filterpipeline.FilterFailedError:
		return apierr.New(apierr.FilterFailed, e.Error())
	case *filterpipeline.ShuffleSizeMismatchError:
		return apierr.New(apierr.ShuffleSizeMismatch, e.Error())
	case *array.ShapeMismatchError:
		return apierr.New(apierr.ShapeMismatch, e.Error())
	case *array.InvalidSelectionError:
		return apierr.New(apierr.InvalidSelection, e.Error())
	case *reduce.EmptyReductionError:
		return apierr.New(apierr.EmptyReduction, e.Error())
	default:
		return apierr.New(apierr.InternalError, err.Error())
	}
}
