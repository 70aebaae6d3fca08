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

package httpfront

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"bytebeam/internal/relay/relayerr"
)

// makeUpload implements POST /{name_or_ticket}: if the path segment names
// an existing ticket, it is an upgrade request; otherwise it mints a new
// ticket for a file named by the segment.
func (s *Server) makeUpload(w http.ResponseWriter, r *http.Request) {
	segment := chi.URLParam(r, "name")

	if _, err := s.registry.GetFileMetadata(segment); err == nil {
		s.upgrade(w, r, segment)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form body", http.StatusBadRequest)
		return
	}
	var user *string
	if u := r.FormValue("user"); u != "" {
		user = &u
	}
	m := s.registry.Mint(segment, user)
	s.logger.Printf("http: ticket=%s minted for %q", m.Path, segment)
	writeJSON(w, m)
}

// upgrade implements the SSH-key upgrade path: the caller posts a
// "challenge" field that is either a single response string or a JSON
// array of candidate responses.
func (s *Server) upgrade(w http.ResponseWriter, r *http.Request, ticket string) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form body", http.StatusBadRequest)
		return
	}
	raw := r.FormValue("challenge")
	if raw == "" {
		writeError(w, relayerr.BadRequest)
		return
	}

	var responses []string
	if err := json.Unmarshal([]byte(raw), &responses); err != nil || len(responses) == 0 {
		responses = []string{raw}
	}

	m, ok, err := s.registry.Upgrade(ticket, responses)
	if err != nil {
		s.logger.Printf("http: ticket=%s upgrade failed: %v", ticket, err)
		writeError(w, err)
		return
	}
	if !ok {
		s.logger.Printf("http: ticket=%s upgrade rejected: no challenge response matched", ticket)
		writeError(w, relayerr.Unauthorized)
		return
	}
	s.logger.Printf("http: ticket=%s upgraded to %s", ticket, m.Path)
	writeJSON(w, m)
}

// removeFile implements DELETE /{ticket}: unconditional teardown.
func (s *Server) removeFile(w http.ResponseWriter, r *http.Request) {
	ticket := chi.URLParam(r, "ticket")
	if !s.registry.Delete(ticket) {
		writeError(w, relayerr.NotFound)
		return
	}
	s.logger.Printf("http: ticket=%s removed", ticket)
	w.WriteHeader(http.StatusNoContent)
}
