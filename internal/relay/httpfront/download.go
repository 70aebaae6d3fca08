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
	"fmt"
	"html"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"

	"bytebeam/internal/relay/metadata"
)

// download implements GET /{ticket}/{name}: the upload landing form when
// name is the upload key, the locked-state checks, and the streaming
// egress path. A Paused download is not download-locked, so it resumes on
// any request; ?resume=true is accepted but not required.
func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	ticket := chi.URLParam(r, "ticket")
	name := chi.URLParam(r, "name")

	m, err := s.registry.GetFileMetadata(ticket)
	if err != nil {
		writeError(w, err)
		return
	}

	if name == m.UploadKey {
		s.writeUploadLandingPage(w, ticket, m.UploadKey)
		return
	}

	resuming := r.URL.Query().Get("resume") == "true" && m.Download == metadata.Paused
	if m.DownloadLocked() && !resuming {
		if m.Download == metadata.Complete {
			http.Error(w, "file already downloaded", http.StatusGone)
			return
		}
		http.Error(w, "download already in progress", http.StatusConflict)
		return
	}

	consumer, snapshot, err := s.registry.BeginDownload(ticket)
	if err != nil {
		s.logger.Printf("http: ticket=%s download rejected: %v", ticket, err)
		writeError(w, err)
		return
	}
	s.logger.Printf("http: ticket=%s download starting", ticket)

	if length, ok := snapshot.FileSize.ContentLength(); ok {
		w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
	}
	if snapshot.Compression != metadata.CompressionNone {
		w.Header().Set("Content-Encoding", string(snapshot.Compression))
	}
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	var downloaded atomic.Int64
	stopSampler := make(chan struct{})
	samplerDone := make(chan struct{})
	go func() {
		defer close(samplerDone)
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		var last int64
		flush := func() {
			if cur := downloaded.Load(); cur != last {
				s.registry.IncreaseUploadDownloadNumbers(ticket, 0, cur-last)
				last = cur
			}
		}
		for {
			select {
			case <-ticker.C:
				flush()
			case <-stopSampler:
				flush()
				return
			}
		}
	}()

	ctx := r.Context()
	for {
		data, ok, err := consumer.Receive(ctx)
		if err != nil || !ok {
			// Receiver's own context expired, or the producer closed without
			// enqueuing a sentinel: the sender disconnected mid-upload.
			break
		}
		if len(data) == 0 {
			// End-of-stream sentinel.
			_ = s.registry.End(ticket)
			s.logger.Printf("http: ticket=%s download complete", ticket)
			break
		}
		if _, werr := w.Write(data); werr != nil {
			// The receiver disconnected. Tear the ticket down so the
			// uploader's next Send observes the pipe closed rather than
			// blocking forever.
			s.logger.Printf("http: ticket=%s download aborted: receiver gone", ticket)
			s.registry.Delete(ticket)
			break
		}
		downloaded.Add(int64(len(data)))
		if flusher != nil {
			flusher.Flush()
		}
	}

	close(stopSampler)
	<-samplerDone
}

func (s *Server) writeUploadLandingPage(w http.ResponseWriter, ticket, key string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	action := "/" + ticket + "/" + key
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><title>ByteBeam upload</title></head>
<body>
<h1>Send a file</h1>
<form method="POST" action="%s" enctype="multipart/form-data">
<input type="number" name="file-size" placeholder="size in bytes (optional)">
<input type="file" name="file">
<button type="submit">Upload</button>
</form>
</body>
</html>
`, html.EscapeString(action))
}
