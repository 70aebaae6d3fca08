// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package httpfront is the route multiplexer: ticket creation, upgrade,
// metadata query, landing pages, multipart ingest, and streaming egress. It
// translates every internal error kind to an HTTP status code at the
// boundary and never lets one change the status of a response that has
// already started streaming.
package httpfront

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"bytebeam/internal/relay/buildinfo"
	"bytebeam/internal/relay/registry"
	"bytebeam/internal/relay/telemetry"
)

// maxRequestBytes is the global request-body ceiling (spec.md §4.6).
const maxRequestBytes = 100 * (1 << 30) // 100 GiB

// Server wires the registry into chi routes.
type Server struct {
	registry *registry.Registry
	logger   *log.Logger
}

// NewServer constructs a Server. logger may be nil, in which case
// log.Default() is used.
func NewServer(reg *registry.Registry, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{registry: reg, logger: logger}
}

// Routes builds the chi router with the Server header and body-size-limit
// middleware applied ahead of every handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.serverHeaderMiddleware)
	r.Use(s.bodyLimitMiddleware)

	r.Handle("/metrics", telemetry.Handler())
	r.Get("/", s.landing)
	r.Get("/{ticket}", s.getDownload)
	r.Delete("/{ticket}", s.removeFile)
	r.Get("/{ticket}/{name}", s.download)
	r.Post("/{name}", s.makeUpload)
	r.Post("/{ticket}/{key}", s.upload)

	return r
}

func (s *Server) serverHeaderMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if w.Header().Get("Server") == "" {
			w.Header().Set("Server", "ByteBeam/"+buildinfo.Version)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) bodyLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) landing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(landingPageHTML))
}

const landingPageHTML = `<!DOCTYPE html>
<html>
<head><title>ByteBeam</title></head>
<body>
<h1>ByteBeam</h1>
<p>Single-use, in-memory file relay. POST a file name to <code>/{name}</code> to get a ticket.</p>
</body>
</html>
`
