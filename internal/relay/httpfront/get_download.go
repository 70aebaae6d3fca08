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
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"bytebeam/internal/relay/metadata"
)

// getDownload implements GET /{ticket}: status/stream query modes, the
// locked-state checks, a browser-friendly landing page, or a redirect to
// the canonical download URL.
func (s *Server) getDownload(w http.ResponseWriter, r *http.Request) {
	ticket := chi.URLParam(r, "ticket")

	if r.URL.Query().Get("status") == "true" {
		m, err := s.registry.GetFileMetadata(ticket)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, m.Redact())
		return
	}

	if r.URL.Query().Get("stream") == "true" {
		s.streamStatus(w, r, ticket)
		return
	}

	m, err := s.registry.GetFileMetadata(ticket)
	if err != nil {
		writeError(w, err)
		return
	}
	if m.DownloadLocked() {
		if m.Download == metadata.Complete {
			http.Error(w, "file already downloaded", http.StatusGone)
			return
		}
		http.Error(w, "download already in progress", http.StatusConflict)
		return
	}

	ua := r.Header.Get("User-Agent")
	looksLikeBrowser := strings.HasPrefix(ua, "Mozilla") || strings.HasPrefix(ua, "WhatsApp")
	if looksLikeBrowser && r.URL.Query().Get("download") != "true" {
		s.writeDownloadLandingPage(w, m)
		return
	}

	target := "/" + ticket + "/" + url.PathEscape(m.FileName)
	http.Redirect(w, r, target, http.StatusTemporaryRedirect)
}

// streamStatus long-polls redacted metadata snapshots to the client as
// newline-delimited JSON every 500ms until the ticket disappears or the
// client disconnects.
func (s *Server) streamStatus(w http.ResponseWriter, r *http.Request, ticket string) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		m, err := s.registry.GetFileMetadata(ticket)
		if err != nil {
			return
		}
		b, err := json.Marshal(m.Redact())
		if err != nil {
			return
		}
		if _, err := w.Write(append(b, '\n')); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}

		select {
		case <-ticker.C:
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) writeDownloadLandingPage(w http.ResponseWriter, m metadata.FileMetadata) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	size := "unknown"
	if n, ok := m.FileSize.ContentLength(); ok {
		size = fmt.Sprintf("%d bytes", n)
	}
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><title>ByteBeam: %s</title></head>
<body>
<h1>%s</h1>
<p>Size: %s</p>
<p>Compression: %s</p>
<p><a href="?download=true">Download</a></p>
</body>
</html>
`, html.EscapeString(m.FileName), html.EscapeString(m.FileName), html.EscapeString(size), html.EscapeString(string(m.Compression)))
}
