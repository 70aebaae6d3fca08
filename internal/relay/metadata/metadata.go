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

// Package metadata defines FileMetadata, the per-ticket record, its upload
// and download state machines, and the redaction rule applied before a
// ticket's metadata is ever shown to an unauthenticated caller.
package metadata

import (
	"time"

	"github.com/google/uuid"
)

// State is a node in the upload or download state machine.
type State int

const (
	NotStarted State = iota
	InProgress
	Paused
	Complete
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "NotStarted"
	case InProgress:
		return "InProgress"
	case Paused:
		return "Paused"
	case Complete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// MarshalJSON renders State the way the protocol's metadata JSON expects:
// one of the bare strings NotStarted|InProgress|Paused|Complete.
func (s State) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Compression is the advertised, server-opaque payload encoding.
type Compression string

const (
	CompressionNone    Compression = "none"
	CompressionGzip    Compression = "gzip"
	CompressionDeflate Compression = "deflate"
	CompressionBrotli  Compression = "br"
	CompressionZstd    Compression = "zstd"
)

// FileSize bundles the size bookkeeping for one ticket. Trustworthy is true
// iff no compression is in effect, in which case Declared (when present) is
// the authoritative Content-Length.
type FileSize struct {
	Declared       *int64 `json:"file_size"`
	UploadedSize   int64  `json:"uploaded_size"`
	DownloadedSize int64  `json:"downloaded_size"`
	UploadComplete bool   `json:"upload_complete"`
	Trustworthy    bool   `json:"file_size_trustworthy"`
}

// ContentLength computes the effective HTTP Content-Length: the declared
// size if trustworthy, else the uploaded byte count once upload is
// complete, else undefined.
func (f FileSize) ContentLength() (int64, bool) {
	if f.Trustworthy && f.Declared != nil {
		return *f.Declared, true
	}
	if f.UploadComplete {
		return f.UploadedSize, true
	}
	return 0, false
}

func (f FileSize) clone() FileSize {
	out := f
	if f.Declared != nil {
		d := *f.Declared
		out.Declared = &d
	}
	return out
}

// FileMetadata is the ticket record: path/upload_key identity, declared
// name and size, compression tag, the two independent state machines, and
// the authentication/challenge bookkeeping for the upgrade path.
type FileMetadata struct {
	Path          string      `json:"path"`
	UploadKey     string      `json:"upload_key"`
	FileName      string      `json:"file_name"`
	FileSize      FileSize    `json:"file_size"`
	Compression   Compression `json:"compression"`
	Upload        State       `json:"upload"`
	Download      State       `json:"download"`
	Created       time.Time   `json:"created"`
	Accessed      time.Time   `json:"accessed"`
	AuthedUser    *string     `json:"authed_user"`
	Challenge     uuid.UUID   `json:"challenge"`
	Authenticated bool        `json:"authenticated"`
}

// New constructs a fresh, NotStarted/NotStarted ticket record.
func New(path, uploadKey, fileName string, authedUser *string) FileMetadata {
	now := time.Now()
	var user *string
	if authedUser != nil {
		u := *authedUser
		user = &u
	}
	return FileMetadata{
		Path:      path,
		UploadKey: uploadKey,
		FileName:  fileName,
		FileSize: FileSize{
			Trustworthy: true,
		},
		Compression:   CompressionNone,
		Upload:        NotStarted,
		Download:      NotStarted,
		Created:       now,
		Accessed:      now,
		AuthedUser:    user,
		Challenge:     uuid.New(),
		Authenticated: false,
	}
}

// Clone returns a deep copy safe to hand outside the registry lock.
func (m FileMetadata) Clone() FileMetadata {
	out := m
	out.FileSize = m.FileSize.clone()
	if m.AuthedUser != nil {
		u := *m.AuthedUser
		out.AuthedUser = &u
	}
	return out
}

// Redact strips everything a public metadata response must never expose:
// the upload key and file name, and (when compression is in effect) any
// field that would leak the sender-side length.
func (m FileMetadata) Redact() FileMetadata {
	out := m.Clone()
	out.FileName = "null"
	out.UploadKey = "null"
	if out.Compression != CompressionNone {
		out.FileSize.Declared = nil
		out.FileSize.UploadedSize = 0
		out.FileSize.DownloadedSize = 0
	}
	return out
}

// UploadLocked reports whether a second upload attempt must be rejected.
func (m FileMetadata) UploadLocked() bool {
	return m.Upload == InProgress || m.Upload == Complete
}

// DownloadLocked reports whether a new download attempt must be rejected.
func (m FileMetadata) DownloadLocked() bool {
	return m.Download == InProgress || m.Download == Complete
}

// DownloadPausable reports whether the download side can currently be
// returned to the registry (i.e., is InProgress).
func (m FileMetadata) DownloadPausable() bool {
	return m.Download == InProgress
}

// IsWaiting reports whether neither side has started (both are still
// NotStarted), the condition the Culler uses alongside ticket age to decide
// eligibility.
func (m FileMetadata) IsWaiting() bool {
	return m.Upload == NotStarted && m.Download == NotStarted
}

// Age returns how long it has been since Accessed was last refreshed.
func (m FileMetadata) Age() time.Duration {
	return time.Since(m.Accessed)
}

// Touch refreshes Accessed in place.
func (m *FileMetadata) Touch() {
	m.Accessed = time.Now()
}

// StartUpload transitions Upload: NotStarted -> InProgress.
func (m *FileMetadata) StartUpload() {
	m.Upload = InProgress
}

// EndUpload transitions Upload: InProgress -> Complete and marks the
// uploaded byte count final.
func (m *FileMetadata) EndUpload() {
	m.Upload = Complete
	m.FileSize.UploadComplete = true
}

// StartDownload transitions Download: NotStarted|Paused -> InProgress.
func (m *FileMetadata) StartDownload() {
	m.Download = InProgress
}

// PauseDownload transitions Download: InProgress -> Paused.
func (m *FileMetadata) PauseDownload() {
	m.Download = Paused
}

// EndDownload transitions Download: InProgress -> Complete.
func (m *FileMetadata) EndDownload() {
	m.Download = Complete
}

// SetCompression updates the advertised encoding and recomputes
// Trustworthy: non-none compression makes the declared size untrustworthy.
func (m *FileMetadata) SetCompression(c Compression) {
	m.Compression = c
	m.FileSize.Trustworthy = c == CompressionNone
}

// SetDeclaredSize records the sender-advertised size, if any.
func (m *FileMetadata) SetDeclaredSize(size int64) {
	m.FileSize.Declared = &size
}

// AddUploaded adds n (n may be 0) to the running uploaded byte count.
func (m *FileMetadata) AddUploaded(n int64) {
	m.FileSize.UploadedSize += n
}

// AddDownloaded adds n (n may be 0) to the running downloaded byte count.
func (m *FileMetadata) AddDownloaded(n int64) {
	m.FileSize.DownloadedSize += n
}
