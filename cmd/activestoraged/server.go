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
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"

	"github.com/stackhpc/activestorage-go/apierr"
	"github.com/stackhpc/activestorage-go/metrics"
	"github.com/stackhpc/activestorage-go/orchestrate"
	"github.com/stackhpc/activestorage-go/reduce"
)

// server holds the collaborators that live for the process's
// lifetime, mirroring cmd/snellerd's server struct.
type server struct {
	logger *log.Logger
	orch   *orchestrate.Orchestrator

	srv  http.Server
	addr net.Addr

	// hack to avoid data races in testing
	aboutToServe func()
}

func (s *server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *server) handler() *http.ServeMux {
	r := http.NewServeMux()
	r.HandleFunc("/", s.handle(s.pingHandler, http.MethodGet))
	r.HandleFunc("/v1/count", s.handle(s.reduceHandler(reduce.Count), http.MethodPost))
	r.HandleFunc("/v1/sum", s.handle(s.reduceHandler(reduce.Sum), http.MethodPost))
	r.HandleFunc("/v1/min", s.handle(s.reduceHandler(reduce.Min), http.MethodPost))
	r.HandleFunc("/v1/max", s.handle(s.reduceHandler(reduce.Max), http.MethodPost))
	r.HandleFunc("/v1/select", s.handle(s.reduceHandler(reduce.Select), http.MethodPost))
	r.HandleFunc("/v1/", s.handle(s.unsupportedOperationHandler,
		http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodHead))
	r.HandleFunc("/.well-known/reductionist-schema", s.handle(s.schemaHandler, http.MethodGet))
	r.Handle("/metrics", metrics.Handler())
	return r
}

// unsupportedOperationHandler serves every /v1/<op> route not already
// claimed by one of the five reductions above: an unrecognized op
// name reports UnsupportedOperation rather than falling through to
// the "/" route's 405.
func (s *server) unsupportedOperationHandler(w http.ResponseWriter, r *http.Request, requestID string) {
	op := strings.TrimPrefix(r.URL.Path, "/v1/")
	writeError(w, apierr.New(apierr.UnsupportedOperation, fmt.Sprintf("unsupported operation %q", op)), requestID)
}

func (s *server) Serve(l net.Listener) error {
	s.addr = l.Addr()
	s.srv.Handler = normalizeSlash(s.handler())
	if s.aboutToServe != nil {
		s.aboutToServe()
	}
	return s.srv.Serve(l)
}

// normalizeSlash strips a single trailing slash from the request path
// before it reaches the mux, so "/v1/sum/" routes the same as
// "/v1/sum".
func normalizeSlash(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.URL.Path = normalizePath(r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

func (s *server) pingHandler(w http.ResponseWriter, r *http.Request, requestID string) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("activestorage-go\n"))
}

// schemaHandler serves a placeholder schema document. The spec leaves
// a real OpenAPI description as future work; this names the operations
// the daemon actually implements so a client can discover them.
func (s *server) schemaHandler(w http.ResponseWriter, r *http.Request, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"operations":["count","sum","min","max","select"]}` + "\n"))
}

// reduceHandler returns the handler for a single /v1/<op> route: it
// rejects a malformed Authorization header before touching the
// request body, decodes the body, and runs the request through the
// orchestrator under the resolved (possibly anonymous) credentials.
func (s *server) reduceHandler(op reduce.Op) func(http.ResponseWriter, *http.Request, string) {
	return func(w http.ResponseWriter, r *http.Request, requestID string) {
		creds, err := credentialsFromRequest(r)
		if err != nil {
			writeError(w, err, requestID)
			return
		}
		req, err := orchestrate.DecodeRequest(r.Body)
		if err != nil {
			writeError(w, err, requestID)
			return
		}
		out, err := s.orch.Run(r.Context(), op, req, creds)
		if err != nil {
			writeError(w, err, requestID)
			return
		}
		writeOutcome(w, out)
	}
}

// normalizePath strips a single trailing slash from reduction routes,
// so POSTs to "/v1/sum/" behave the same as "/v1/sum".
func normalizePath(path string) string {
	if path != "/" && strings.HasSuffix(path, "/") {
		return strings.TrimSuffix(path, "/")
	}
	return path
}
