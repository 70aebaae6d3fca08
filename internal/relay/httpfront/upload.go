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
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"bytebeam/internal/relay/chunk"
	"bytebeam/internal/relay/metadata"
	"bytebeam/internal/relay/tier"
)

const uploadReadBuf = 32 * 1024

// upload implements POST /{ticket}/{key}: validates the upload key,
// streams the multipart body, splits the payload field into exactly
// block_size chunks as the tier policy dictates, and closes out the
// upload with a zero-length sentinel chunk.
func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	ticket := chi.URLParam(r, "ticket")
	key := chi.URLParam(r, "key")

	producer, policy, err := s.registry.BeginUpload(ticket, key)
	if err != nil {
		s.logger.Printf("http: ticket=%s upload rejected: %v", ticket, err)
		writeError(w, err)
		return
	}
	s.logger.Printf("http: ticket=%s upload starting", ticket)

	mr, err := r.MultipartReader()
	if err != nil {
		http.Error(w, "expected multipart/form-data body", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	var total int64

	for {
		part, perr := mr.NextPart()
		if perr == io.EOF {
			break
		}
		if perr != nil {
			producer.Close()
			http.Error(w, "malformed multipart body", http.StatusBadRequest)
			return
		}

		switch part.FormName() {
		case "file-size":
			b, _ := io.ReadAll(io.LimitReader(part, 64))
			if n, perr := strconv.ParseInt(strings.TrimSpace(string(b)), 10, 64); perr == nil {
				_ = s.registry.SetMetadata(ticket, nil, &n, nil)
			}
		case "compression":
			b, _ := io.ReadAll(io.LimitReader(part, 64))
			c := metadata.Compression(strings.TrimSpace(string(b)))
			_ = s.registry.SetMetadata(ticket, nil, nil, &c)
		default:
			n, aborted := s.streamPayload(ctx, w, part, producer, policy)
			total += n
			if n > 0 {
				s.registry.IncreaseUploadDownloadNumbers(ticket, n, 0)
			}
			if aborted {
				return
			}
		}
	}

	if err := producer.Send(ctx, []byte{}); err != nil {
		s.logger.Printf("http: ticket=%s upload aborted: receiver gone", ticket)
		http.Error(w, "upload aborted: receiver gone", http.StatusGone)
		return
	}
	_ = s.registry.EndUpload(ticket)
	s.logger.Printf("http: ticket=%s upload complete: %d bytes", ticket, total)
	fmt.Fprintf(w, "Done! Sent %d bytes", total)
}

// streamPayload reads one multipart part in uploadReadBuf-sized reads,
// accumulating into a reassembly buffer and enqueuing exactly
// policy.BlockSize-sized chunks as the buffer fills. aborted is true once
// an error response has already been written and the caller must not
// write anything further.
func (s *Server) streamPayload(ctx context.Context, w http.ResponseWriter, part io.Reader, producer chunk.Producer, policy tier.Policy) (total int64, aborted bool) {
	readBuf := make([]byte, uploadReadBuf)
	var buf []byte

	for {
		n, rerr := part.Read(readBuf)
		if n > 0 {
			buf = append(buf, readBuf[:n]...)
			for len(buf) >= policy.BlockSize {
				if producer.IsClosed() {
					http.Error(w, "upload aborted: receiver gone", http.StatusGone)
					return total, true
				}
				block := append([]byte(nil), buf[:policy.BlockSize]...)
				if err := producer.Send(ctx, block); err != nil {
					http.Error(w, "upload aborted: receiver gone", http.StatusGone)
					return total, true
				}
				total += int64(policy.BlockSize)
				buf = buf[policy.BlockSize:]
				if policy.PacketDelay > 0 {
					time.Sleep(policy.PacketDelay)
				}
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			producer.Close()
			http.Error(w, "upload aborted: read error", http.StatusBadRequest)
			return total, true
		}
	}

	if len(buf) > 0 {
		if err := producer.Send(ctx, append([]byte(nil), buf...)); err != nil {
			http.Error(w, "upload aborted: receiver gone", http.StatusGone)
			return total, true
		}
		total += int64(len(buf))
	}
	return total, false
}
