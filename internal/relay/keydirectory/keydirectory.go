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

// Package keydirectory maps user names to sets of SSH public keys and
// verifies SSH-format signatures over a ticket's challenge. It is the
// authentication half of the public -> authenticated tier upgrade.
package keydirectory

import (
	"bytes"
	"crypto/sha512"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/ssh"
)

// signatureNamespace is the fixed SSHSIG namespace every challenge response
// must be signed under; verify rejects any other namespace.
const signatureNamespace = "bytebeam"

// Directory resolves user names to SSH public keys, either from a literal
// authorized_keys line given inline in config or fetched once at
// construction time from a keyserver URL template.
type Directory struct {
	keys map[string][]ssh.PublicKey
}

// New builds a Directory from a users list (see config.Users) and an
// optional keyserver URL template containing the substring "{}" where a
// user name is substituted. Each entry in users is either a raw OpenSSH
// public key line (inserted verbatim, keyed by the line's comment field) or
// a plain user name (resolved via one GET against the keyserver).
//
// A keyserver fetch failure is non-fatal: the user is simply absent from
// the directory, matching spec.md §6.
func New(users []string, keyserver string) (*Directory, error) {
	d := &Directory{keys: make(map[string][]ssh.PublicKey)}

	httpClient := &http.Client{}
	for _, entry := range users {
		if pub, comment, _, _, err := ssh.ParseAuthorizedKey([]byte(entry)); err == nil {
			name := comment
			if name == "" {
				name = entry
			}
			d.keys[name] = append(d.keys[name], pub)
			continue
		}

		// Plain user name: resolve via the keyserver, if configured.
		if keyserver == "" {
			continue
		}
		url := strings.ReplaceAll(keyserver, "{}", entry)
		if err := d.fetchInto(httpClient, url, entry); err != nil {
			// Non-fatal: the user is simply absent from the directory.
			continue
		}
	}
	return d, nil
}

func (d *Directory) fetchInto(client *http.Client, url, user string) error {
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("keydirectory: keyserver fetch for %s: %w", user, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("keydirectory: keyserver returned %d for %s", resp.StatusCode, user)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("keydirectory: reading keyserver response for %s: %w", user, err)
	}

	rest := body
	for len(bytes.TrimSpace(rest)) > 0 {
		pub, _, _, remainder, err := ssh.ParseAuthorizedKey(rest)
		if err != nil {
			break
		}
		d.keys[user] = append(d.keys[user], pub)
		rest = remainder
	}
	return nil
}

// Verify reports whether response is a valid armored SSH signature, under
// namespace "bytebeam" and hash SHA-512, over challenge's UTF-8 bytes, by
// any key registered to user. Every failure mode — unknown user, malformed
// response, no key matches — collapses to false; callers never distinguish.
func (d *Directory) Verify(user string, challenge uuid.UUID, response string) bool {
	keys, ok := d.keys[user]
	if !ok || len(keys) == 0 {
		return false
	}

	sig, err := parseArmoredSignature([]byte(response))
	if err != nil {
		return false
	}
	if sig.namespace != signatureNamespace || sig.hashAlg != "sha512" {
		return false
	}

	hashed := sha512.Sum512([]byte(challenge.String()))
	data := signedData(sig.namespace, sig.hashAlg, hashed[:])

	for _, key := range keys {
		if !bytes.Equal(key.Marshal(), sig.publicKey.Marshal()) {
			continue
		}
		if key.Verify(data, sig.signature) == nil {
			return true
		}
	}
	return false
}
