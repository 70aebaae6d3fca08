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

// Package registry owns the process-wide ticket -> (metadata, producer,
// consumer) mapping and every state transition, upgrade, and deletion that
// touches it. All public methods are safe for concurrent use.
package registry

import (
	"log"
	"sync"

	"bytebeam/internal/relay/chunk"
	"bytebeam/internal/relay/keydirectory"
	"bytebeam/internal/relay/metadata"
	"bytebeam/internal/relay/relayerr"
	"bytebeam/internal/relay/tier"
	"bytebeam/internal/relay/token"
)

// Registry owns three parallel maps keyed by ticket ID, following
// spec.md §4.4's fixed lock order (files, then uploads, then downloads) to
// avoid cross-locking cycles between operations that touch more than one.
type Registry struct {
	filesMu sync.Mutex
	files   map[string]*metadata.FileMetadata

	uploadsMu sync.Mutex
	uploads   map[string]chunk.Producer

	downloadsMu sync.Mutex
	downloads   map[string]chunk.Consumer

	publicTier tier.Policy
	authTier   tier.Policy

	mint    *token.Mint
	keydir  *keydirectory.Directory
	metrics Metrics
	logger  *log.Logger
}

// Metrics is the narrow set of counters the registry reports on; it is
// satisfied by telemetry.Metrics and by a no-op in tests that don't care.
type Metrics interface {
	TicketMinted()
	TicketDeleted()
	TicketCulled()
	BytesUploaded(n int64)
	BytesDownloaded(n int64)
}

type noopMetrics struct{}

func (noopMetrics) TicketMinted()         {}
func (noopMetrics) TicketDeleted()        {}
func (noopMetrics) TicketCulled()         {}
func (noopMetrics) BytesUploaded(int64)   {}
func (noopMetrics) BytesDownloaded(int64) {}

// New constructs a Registry using publicTier/authTier for admission control
// and dir to verify upgrade challenges. metrics and logger may be nil;
// logger defaults to log.Default() with a "registry: " prefix.
func New(publicTier, authTier tier.Policy, dir *keydirectory.Directory, metrics Metrics, logger *log.Logger) *Registry {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = log.New(log.Writer(), "registry: ", log.Flags())
	}
	return &Registry{
		files:      make(map[string]*metadata.FileMetadata),
		uploads:    make(map[string]chunk.Producer),
		downloads:  make(map[string]chunk.Consumer),
		publicTier: publicTier,
		authTier:   authTier,
		mint:       token.New(),
		keydir:     dir,
		metrics:    metrics,
		logger:     logger,
	}
}

// Mint creates a new ticket in the public tier, returning the full metadata
// including the upload key — the only time it is ever disclosed.
func (r *Registry) Mint(fileName string, authedUser *string) metadata.FileMetadata {
	path := r.mint.GenerateUploadToken(r.publicTier.TokenFormat)
	uploadKey := r.mint.GenerateKeyToken(r.publicTier.UploadFormat)
	m := metadata.New(path, uploadKey, fileName, authedUser)

	producer, consumer := chunk.New(r.publicTier.CacheSize)

	r.filesMu.Lock()
	r.files[path] = &m
	r.filesMu.Unlock()

	r.uploadsMu.Lock()
	r.uploads[path] = producer
	r.uploadsMu.Unlock()

	r.downloadsMu.Lock()
	r.downloads[path] = consumer
	r.downloadsMu.Unlock()

	r.metrics.TicketMinted()
	r.logger.Printf("mint: ticket=%s name=%q", path, fileName)
	return m
}

// Upgrade verifies challengeResponses against authedUser's registered keys,
// trying every entry and succeeding on the first match (spec.md §9, open
// question (a)). On success it atomically re-keys the ticket under the
// authenticated tier's templates and returns the new metadata; on failure
// it returns (_, false) and leaves all state untouched.
func (r *Registry) Upgrade(ticket string, challengeResponses []string) (metadata.FileMetadata, bool, error) {
	r.filesMu.Lock()
	m, ok := r.files[ticket]
	if !ok {
		r.filesMu.Unlock()
		return metadata.FileMetadata{}, false, relayerr.NotFound
	}
	if m.AuthedUser == nil {
		r.filesMu.Unlock()
		return metadata.FileMetadata{}, false, relayerr.BadRequest
	}
	if m.Authenticated {
		current := m.Clone()
		r.filesMu.Unlock()
		return current, true, nil
	}
	user := *m.AuthedUser
	challenge := m.Challenge
	r.filesMu.Unlock()

	if r.keydir == nil {
		return metadata.FileMetadata{}, false, nil
	}

	matched := false
	for _, resp := range challengeResponses {
		if r.keydir.Verify(user, challenge, resp) {
			matched = true
			break
		}
	}
	if !matched {
		r.logger.Printf("upgrade: ticket=%s user=%q rejected: no challenge response matched", ticket, user)
		return metadata.FileMetadata{}, false, nil
	}

	newPath := r.mint.GenerateUploadToken(r.authTier.TokenFormat)
	newUploadKey := r.mint.GenerateKeyToken(r.authTier.UploadFormat)

	r.filesMu.Lock()
	m, ok = r.files[ticket]
	if !ok {
		r.filesMu.Unlock()
		return metadata.FileMetadata{}, false, relayerr.NotFound
	}
	if m.Authenticated {
		current := m.Clone()
		r.filesMu.Unlock()
		return current, true, nil
	}

	upgraded := m.Clone()
	upgraded.Path = newPath
	upgraded.UploadKey = newUploadKey
	upgraded.Authenticated = true
	upgraded.Touch()

	delete(r.files, ticket)
	r.files[newPath] = &upgraded
	r.filesMu.Unlock()

	r.uploadsMu.Lock()
	oldProducer, hadProducer := r.uploads[ticket]
	delete(r.uploads, ticket)
	if hadProducer {
		if oldProducer.Cap() == r.publicTier.CacheSize {
			// Never used: safe to re-create with the authenticated tier's
			// larger capacity.
			newProducer, newConsumer := chunk.New(r.authTier.CacheSize)
			r.uploads[newPath] = newProducer
			r.downloadsMu.Lock()
			delete(r.downloads, ticket)
			r.downloads[newPath] = newConsumer
			r.downloadsMu.Unlock()
			r.uploadsMu.Unlock()
			r.logger.Printf("upgrade: ticket=%s -> %s user=%q (pipe re-created at authenticated capacity)", ticket, newPath, user)
			return upgraded.Clone(), true, nil
		}
		// Already in use: preserve the existing pipe as-is.
		r.uploads[newPath] = oldProducer
	}
	r.uploadsMu.Unlock()

	r.downloadsMu.Lock()
	if consumer, hadConsumer := r.downloads[ticket]; hadConsumer {
		delete(r.downloads, ticket)
		r.downloads[newPath] = consumer
	}
	r.downloadsMu.Unlock()

	r.logger.Printf("upgrade: ticket=%s -> %s user=%q (pipe already in use, capacity unchanged)", ticket, newPath, user)
	return upgraded.Clone(), true, nil
}

// GetFileMetadata refreshes Accessed and returns a clone.
func (r *Registry) GetFileMetadata(ticket string) (metadata.FileMetadata, error) {
	r.filesMu.Lock()
	defer r.filesMu.Unlock()
	m, ok := r.files[ticket]
	if !ok {
		return metadata.FileMetadata{}, relayerr.NotFound
	}
	m.Touch()
	return m.Clone(), nil
}

// BeginUpload validates key, transitions Upload to InProgress, and returns
// a clone of the producer handle plus the tier policy to drive pacing.
func (r *Registry) BeginUpload(ticket, key string) (chunk.Producer, tier.Policy, error) {
	r.filesMu.Lock()
	m, ok := r.files[ticket]
	if !ok {
		r.filesMu.Unlock()
		return chunk.Producer{}, tier.Policy{}, relayerr.NotFound
	}
	if m.UploadLocked() {
		r.filesMu.Unlock()
		return chunk.Producer{}, tier.Policy{}, relayerr.Conflict
	}
	if m.UploadKey != key {
		r.filesMu.Unlock()
		return chunk.Producer{}, tier.Policy{}, relayerr.Forbidden
	}

	r.uploadsMu.Lock()
	producer, ok := r.uploads[ticket]
	if !ok {
		r.uploadsMu.Unlock()
		r.filesMu.Unlock()
		return chunk.Producer{}, tier.Policy{}, relayerr.Gone
	}
	m.StartUpload()
	policy := r.publicTier
	if m.Authenticated {
		policy = r.authTier
	}
	r.uploadsMu.Unlock()
	r.filesMu.Unlock()

	return producer.Clone(), policy, nil
}

// BeginDownload fails if the download side is locked; otherwise it moves
// the consumer handle out of the registry and transitions Download to
// InProgress.
func (r *Registry) BeginDownload(ticket string) (chunk.Consumer, metadata.FileMetadata, error) {
	r.filesMu.Lock()
	m, ok := r.files[ticket]
	if !ok {
		r.filesMu.Unlock()
		return chunk.Consumer{}, metadata.FileMetadata{}, relayerr.NotFound
	}
	if m.DownloadLocked() {
		r.filesMu.Unlock()
		return chunk.Consumer{}, metadata.FileMetadata{}, relayerr.Conflict
	}

	r.downloadsMu.Lock()
	consumer, ok := r.downloads[ticket]
	if !ok {
		r.downloadsMu.Unlock()
		r.filesMu.Unlock()
		return chunk.Consumer{}, metadata.FileMetadata{}, relayerr.Internal
	}
	delete(r.downloads, ticket)
	m.StartDownload()
	snapshot := m.Clone()
	r.downloadsMu.Unlock()
	r.filesMu.Unlock()

	return consumer, snapshot, nil
}

// ReturnDownload re-inserts consumer and transitions Download to Paused, so
// a later BeginDownload can resume. It only succeeds while the download is
// InProgress (DownloadPausable).
func (r *Registry) ReturnDownload(ticket string, consumer chunk.Consumer) bool {
	r.filesMu.Lock()
	defer r.filesMu.Unlock()
	m, ok := r.files[ticket]
	if !ok || !m.DownloadPausable() {
		return false
	}

	r.downloadsMu.Lock()
	r.downloads[ticket] = consumer
	r.downloadsMu.Unlock()

	m.PauseDownload()
	return true
}

// SetMetadata partially updates a ticket's name, declared size, and/or
// compression. A present compression flips Trustworthy per
// metadata.FileMetadata.SetCompression.
func (r *Registry) SetMetadata(ticket string, name *string, size *int64, compression *metadata.Compression) error {
	r.filesMu.Lock()
	defer r.filesMu.Unlock()
	m, ok := r.files[ticket]
	if !ok {
		return relayerr.NotFound
	}
	if name != nil {
		m.FileName = *name
	}
	if size != nil {
		m.SetDeclaredSize(*size)
	}
	if compression != nil {
		m.SetCompression(*compression)
	}
	return nil
}

// IncreaseUploadDownloadNumbers adds to the running byte counters and
// returns their new totals.
func (r *Registry) IncreaseUploadDownloadNumbers(ticket string, uploaded, downloaded int64) (int64, int64, error) {
	r.filesMu.Lock()
	defer r.filesMu.Unlock()
	m, ok := r.files[ticket]
	if !ok {
		return 0, 0, relayerr.NotFound
	}
	if uploaded != 0 {
		m.AddUploaded(uploaded)
		r.metrics.BytesUploaded(uploaded)
	}
	if downloaded != 0 {
		m.AddDownloaded(downloaded)
		r.metrics.BytesDownloaded(downloaded)
	}
	return m.FileSize.UploadedSize, m.FileSize.DownloadedSize, nil
}

// EndUpload marks the upload side Complete.
func (r *Registry) EndUpload(ticket string) error {
	r.filesMu.Lock()
	defer r.filesMu.Unlock()
	m, ok := r.files[ticket]
	if !ok {
		return relayerr.NotFound
	}
	m.EndUpload()
	return nil
}

// EndDownload marks the download side Complete.
func (r *Registry) EndDownload(ticket string) error {
	r.filesMu.Lock()
	defer r.filesMu.Unlock()
	m, ok := r.files[ticket]
	if !ok {
		return relayerr.NotFound
	}
	m.EndDownload()
	return nil
}

// End is a convenience alias for EndDownload, used by the streaming
// handler once the consumer observes the end-of-stream sentinel.
func (r *Registry) End(ticket string) error {
	return r.EndDownload(ticket)
}

// Delete removes ticket from all three maps. Dropping the producer closes
// its pipe, unblocking any pending consumer; dropping a not-yet-taken
// consumer simply discards it.
func (r *Registry) Delete(ticket string) bool {
	r.filesMu.Lock()
	_, existed := r.files[ticket]
	delete(r.files, ticket)
	r.filesMu.Unlock()

	r.uploadsMu.Lock()
	producer, hadProducer := r.uploads[ticket]
	delete(r.uploads, ticket)
	r.uploadsMu.Unlock()

	r.downloadsMu.Lock()
	delete(r.downloads, ticket)
	r.downloadsMu.Unlock()

	if hadProducer {
		producer.Close()
	}
	if existed {
		r.metrics.TicketDeleted()
	}
	return existed
}

// Cull snapshots ticket ages and waiting-state under lock, releases it, and
// deletes every eligible ticket one at a time (per spec.md §4.4's two-phase
// design, so deletion never happens while holding the snapshot lock).
func (r *Registry) Cull() int {
	type candidate struct {
		ticket string
	}
	var candidates []candidate

	r.filesMu.Lock()
	for ticket, m := range r.files {
		policy := r.publicTier
		if m.Authenticated {
			policy = r.authTier
		}
		if m.Age() > policy.CullTime && m.IsWaiting() {
			candidates = append(candidates, candidate{ticket: ticket})
		}
	}
	r.filesMu.Unlock()

	removed := 0
	for _, c := range candidates {
		if r.Delete(c.ticket) {
			removed++
			r.metrics.TicketCulled()
			r.logger.Printf("cull: removed stale ticket=%s", c.ticket)
		}
	}
	return removed
}
