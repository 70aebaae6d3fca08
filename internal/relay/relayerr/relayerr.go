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

// Package relayerr defines the small, closed set of error kinds that
// internal components (registry, keydirectory, chunk) can return. The HTTP
// layer collapses every error it sees to one of these kinds at the boundary
// and never lets a kind escape as a raw Go error to a client.
package relayerr

import "errors"

// Sentinel kinds. Wrap with fmt.Errorf("%w: detail", KindX) for context;
// callers compare with errors.Is.
var (
	// NotFound: ticket does not exist.
	NotFound = errors.New("ticket not found")
	// Conflict: a second upload or an in-progress download was attempted.
	Conflict = errors.New("conflict")
	// Gone: download already complete, or a handle was already taken.
	Gone = errors.New("gone")
	// Forbidden: wrong upload key.
	Forbidden = errors.New("forbidden")
	// Unauthorized: upgrade challenge failed, or mint refused.
	Unauthorized = errors.New("unauthorized")
	// BadRequest: malformed or missing required input.
	BadRequest = errors.New("bad request")
	// Internal: invariant violation; callers should log and alert.
	Internal = errors.New("internal error")
)

// Is reports whether err wraps kind, via errors.Is.
func Is(err, kind error) bool {
	return errors.Is(err, kind)
}
