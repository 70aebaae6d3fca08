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

	"bytebeam/internal/relay/relayerr"
)

// statusFor maps a relayerr kind to the HTTP status spec.md §7 assigns it.
// Unrecognized errors collapse to 500.
func statusFor(err error) (int, string) {
	switch {
	case relayerr.Is(err, relayerr.NotFound):
		return http.StatusNotFound, "ticket not found"
	case relayerr.Is(err, relayerr.Conflict):
		return http.StatusConflict, "conflict"
	case relayerr.Is(err, relayerr.Gone):
		return http.StatusGone, "gone"
	case relayerr.Is(err, relayerr.Forbidden):
		return http.StatusForbidden, "forbidden"
	case relayerr.Is(err, relayerr.Unauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case relayerr.Is(err, relayerr.BadRequest):
		return http.StatusBadRequest, "bad request"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// writeError renders err as a plain-text body with the mapped status. It
// must only be called before any byte of the response body has been
// written.
func writeError(w http.ResponseWriter, err error) {
	status, msg := statusFor(err)
	http.Error(w, msg, status)
}

// writeJSON renders v as application/json with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
