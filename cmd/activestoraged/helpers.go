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

package main

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/stackhpc/activestorage-go/apierr"
	"github.com/stackhpc/activestorage-go/byteorder"
	"github.com/stackhpc/activestorage-go/orchestrate"
)

// handle wraps handler with CORS headers, a method allowlist, request
// logging and a per-request ID, the way cmd/snellerd's server.handle
// does.
func (s *server) handle(handler func(http.ResponseWriter, *http.Request, string), methods ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		remoteAddress := r.RemoteAddr
		if forwardedFor := r.Header.Get("X-Forwarded-For"); forwardedFor != "" {
			parts := strings.Split(forwardedFor, ",")
			remoteAddress = strings.TrimSpace(parts[len(parts)-1])
		}
		requestID := uuid.NewString()
		s.logger.Printf("[%s] %s %s from %s", requestID, r.Method, r.URL.Path, remoteAddress)

		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		for _, httpMethod := range methods {
			if r.Method == httpMethod {
				handler(w, r, requestID)
				return
			}
		}
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// writeOutcome serializes a successful reduction as the response
// body, with the array's dtype/shape/count/byte-order reported in
// headers so a client can decode the body without re-parsing JSON.
func writeOutcome(w http.ResponseWriter, out *orchestrate.Outcome) {
	shape, err := json.Marshal(out.Shape)
	if err != nil {
		// out.Shape is always a []int64; Marshal cannot fail on it.
		shape = []byte("[]")
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(out.Body)))
	w.Header().Set("X-Activestorage-Dtype", out.Dtype.String())
	w.Header().Set("X-Activestorage-Shape", string(shape))
	w.Header().Set("X-Activestorage-Count", strconv.FormatInt(out.Count, 10))
	w.Header().Set("X-Activestorage-Byte-Order", byteorder.Host.String())
	w.WriteHeader(http.StatusOK)
	w.Write(out.Body)
}

// writeError renders err (translated to the apierr taxonomy if it
// isn't already) as the JSON error body defined by the wire protocol.
// An InternalError is logged with the request ID and its message is
// replaced by a generic one before it reaches the client.
func writeError(w http.ResponseWriter, err error, requestID string) {
	e := apierr.As(err)
	if e.Kind == apierr.InternalError {
		log.Printf("[%s] internal error: %v", requestID, err)
		e = apierr.New(apierr.InternalError, "internal server error")
	}
	e.WriteTo(w, requestID)
}
