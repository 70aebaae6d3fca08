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

// Package tier describes the immutable admission parameters applied to a
// ticket depending on whether it has been SSH-upgraded.
package tier

import "time"

// Policy bundles the knobs that gate a ticket's throughput and lifetime.
// Policies are immutable; selection between them is a single boolean check
// on the ticket's metadata (metadata.Authenticated), never polymorphism.
type Policy struct {
	// Name identifies the policy in logs and metrics ("public", "authenticated").
	Name string
	// CacheSize is the number of chunks the bounded producer/consumer channel
	// may hold before Send blocks.
	CacheSize int
	// BlockSize is the target chunk size on the wire between producer and
	// consumer; it is not the TCP read size.
	BlockSize int
	// CullTime is how long a ticket may sit in a waiting state (neither side
	// started) before the Culler removes it.
	CullTime time.Duration
	// TokenFormat is the template used to mint a ticket's path.
	TokenFormat string
	// UploadFormat is the template used to mint a ticket's upload key.
	UploadFormat string
	// PacketDelay, if non-zero, is slept by the uploader after every full
	// block is enqueued, realizing a coarse bandwidth cap of
	// BlockSize / PacketDelay.
	PacketDelay time.Duration
}

// Public is the default, unauthenticated tier: tight buffer, slow trickle.
var Public = Policy{
	Name:         "public",
	CacheSize:    1,
	BlockSize:    4096,
	CullTime:     time.Hour,
	TokenFormat:  "{uuid}",
	UploadFormat: "{uuid}",
	PacketDelay:  time.Second,
}

// Authenticated is granted after a successful SSH key upgrade: a roughly
// 1 GiB buffer measured in 4 KiB chunks, no pacing, and a friendlier token
// format since rate limiting the upgrade path is practical.
var Authenticated = Policy{
	Name:         "authenticated",
	CacheSize:    (1 << 30) / 4096,
	BlockSize:    4096,
	CullTime:     time.Hour,
	TokenFormat:  "{number}-{word}-{word}-{word}",
	UploadFormat: "{number}-{word}-{word}-{word}",
	PacketDelay:  0,
}

// For selects the policy for a ticket given its authenticated flag.
func For(authenticated bool) Policy {
	if authenticated {
		return Authenticated
	}
	return Public
}
