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
	"encoding/json"
	"fmt"
	"io"

	"github.com/stackhpc/activestorage-go/apierr"
	"github.com/stackhpc/activestorage-go/array"
	"github.com/stackhpc/activestorage-go/byteorder"
	"github.com/stackhpc/activestorage-go/filterpipeline"
	"github.com/stackhpc/activestorage-go/mask"
)

// FilterSpec names one entry of a request's ordered filter list.
type FilterSpec struct {
	ID          string `json:"id"`
	ElementSize int    `json:"element_size"`
}

// MissingSpec is the wire representation of a missing-data policy;
// at most one field may be populated. Thresholds are decoded as
// json.Number, preserving their exact decimal text so mask.Build can
// parse them in the declared dtype's own domain instead of through a
// float64 intermediate.
type MissingSpec struct {
	MissingValue  *json.Number    `json:"missing_value,omitempty"`
	MissingValues []json.Number   `json:"missing_values,omitempty"`
	ValidMin      *json.Number    `json:"valid_min,omitempty"`
	ValidMax      *json.Number    `json:"valid_max,omitempty"`
	ValidRange    *[2]json.Number `json:"valid_range,omitempty"`
}

func (m *MissingSpec) toSpec() mask.Spec {
	if m == nil {
		return mask.Spec{}
	}
	return mask.Spec{
		MissingValue:  m.MissingValue,
		MissingValues: m.MissingValues,
		ValidMin:      m.ValidMin,
		ValidMax:      m.ValidMax,
		ValidRange:    m.ValidRange,
	}
}

// RequestData is the JSON request body accepted by every /v1
// reduction endpoint.
type RequestData struct {
	Source      string       `json:"source"`
	Bucket      string       `json:"bucket"`
	Object      string       `json:"object"`
	Dtype       string       `json:"dtype"`
	ByteOrder   string       `json:"byte_order,omitempty"`
	Offset      int64        `json:"offset,omitempty"`
	Size        int64        `json:"size,omitempty"`
	Shape       []int64      `json:"shape,omitempty"`
	Order       string       `json:"order,omitempty"`
	Selection   [][3]int64   `json:"selection,omitempty"`
	Compression string       `json:"compression,omitempty"`
	Filters     []FilterSpec `json:"filters,omitempty"`
	Missing     *MissingSpec `json:"missing,omitempty"`
}

// DecodeRequest parses and rejects-unknown-keys a RequestData from r.
func DecodeRequest(r io.Reader) (*RequestData, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var req RequestData
	if err := dec.Decode(&req); err != nil {
		return nil, apierr.New(apierr.InvalidRequest, fmt.Sprintf("malformed request body: %v", err))
	}
	return &req, nil
}

// plan is the fully-validated, typed form of a RequestData: every
// string/array field has been parsed into the core types the
// pipeline operates on.
type plan struct {
	dtype       array.Dtype
	byteOrder   array.ByteOrder
	shape       array.Shape
	order       array.Order
	selection   array.Selection
	compression string
	filters     []filterpipeline.Filter
	mask        mask.Mask
}

// validate parses and cross-checks req's fields, returning a plan
// ready to drive the pipeline.
func (req *RequestData) validate() (*plan, error) {
	if req.Source == "" || req.Bucket == "" || req.Object == "" {
		return nil, apierr.New(apierr.InvalidRequest, "source, bucket and object are required")
	}

	dtype, err := array.ParseDtype(req.Dtype)
	if err != nil {
		return nil, apierr.New(apierr.InvalidRequest, err.Error())
	}

	byteOrder := byteorder.Host
	if req.ByteOrder != "" {
		byteOrder, err = array.ParseByteOrder(req.ByteOrder)
		if err != nil {
			return nil, apierr.New(apierr.InvalidRequest, err.Error())
		}
	}

	order, err := array.ParseOrder(req.Order)
	if err != nil {
		return nil, apierr.New(apierr.InvalidRequest, err.Error())
	}

	shape := array.Shape(req.Shape)

	var sel array.Selection
	if req.Selection != nil {
		sel = make(array.Selection, len(req.Selection))
		for i, t := range req.Selection {
			sel[i] = array.Triple{Start: t[0], End: t[1], Stride: t[2]}
		}
		if err := sel.Validate(shape); err != nil {
			return nil, apierr.New(apierr.InvalidSelection, err.Error())
		}
	}

	var filters []filterpipeline.Filter
	for _, f := range req.Filters {
		if f.ID == "shuffle" && f.ElementSize != dtype.Size() {
			return nil, apierr.New(apierr.ShuffleSizeMismatch,
				fmt.Sprintf("shuffle element_size %d does not match element size %d of dtype %q", f.ElementSize, dtype.Size(), dtype))
		}
		filters = append(filters, filterpipeline.Filter{Name: f.ID, ElementSize: f.ElementSize})
	}

	m, err := mask.Build(req.Missing.toSpec(), dtype)
	if err != nil {
		return nil, apierr.New(apierr.InvalidMissing, err.Error())
	}

	return &plan{
		dtype:       dtype,
		byteOrder:   byteOrder,
		shape:       shape,
		order:       order,
		selection:   sel,
		compression: req.Compression,
		filters:     filters,
		mask:        m,
	}, nil
}
