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
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha512"
	"encoding/binary"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"bytebeam/internal/relay/metadata"
)

// writeSSHString and signChallenge build a PROTOCOL.sshsig envelope the way
// `ssh-keygen -Y sign -n bytebeam` would, the same technique
// keydirectory's own tests use, reimplemented here since the wire helpers
// are unexported to that package.
func writeSSHString(buf *bytes.Buffer, s []byte) {
	var lenBytes [4]byte
	binary.BigEndian.PutUint32(lenBytes[:], uint32(len(s)))
	buf.Write(lenBytes[:])
	buf.Write(s)
}

func signChallenge(t *testing.T, signer ssh.Signer, challenge uuid.UUID) string {
	t.Helper()

	const namespace = "bytebeam"
	hashed := sha512.Sum512([]byte(challenge.String()))

	var signedData bytes.Buffer
	signedData.WriteString("SSHSIG")
	writeSSHString(&signedData, []byte(namespace))
	writeSSHString(&signedData, nil)
	writeSSHString(&signedData, []byte("sha512"))
	writeSSHString(&signedData, hashed[:])

	sig, err := signer.Sign(rand.Reader, signedData.Bytes())
	require.NoError(t, err)

	var buf bytes.Buffer
	buf.WriteString("SSHSIG")
	var versionBytes [4]byte
	binary.BigEndian.PutUint32(versionBytes[:], 1)
	buf.Write(versionBytes[:])
	writeSSHString(&buf, signer.PublicKey().Marshal())
	writeSSHString(&buf, []byte(namespace))
	writeSSHString(&buf, nil)
	writeSSHString(&buf, []byte("sha512"))
	writeSSHString(&buf, ssh.Marshal(sig))

	block := &pem.Block{Type: "SSH SIGNATURE", Bytes: buf.Bytes()}
	return string(pem.EncodeToMemory(block))
}

// TestUpgrade_ValidChallengeGrantsAuthenticatedTier exercises POST /{name}
// against an already-minted ticket: a validly signed challenge response
// must re-key the ticket under the authenticated tier.
func TestUpgrade_ValidChallengeGrantsAuthenticatedTier(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := ssh.NewSignerFromKey(priv)
	require.NoError(t, err)
	sshPub, err := ssh.NewPublicKey(pub)
	require.NoError(t, err)
	line := string(ssh.MarshalAuthorizedKey(sshPub))
	line = line[:len(line)-1] + " alice\n"

	s := testServerWithUsers(t, []string{line})
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	mintResp, err := http.PostForm(ts.URL+"/report.pdf", url.Values{"user": {"alice"}})
	require.NoError(t, err)
	var minted metadata.FileMetadata
	mustDecode(t, mintResp.Body, &minted)
	mintResp.Body.Close()
	require.Equal(t, "report.pdf", minted.FileName)
	require.False(t, minted.Authenticated)

	response := signChallenge(t, signer, minted.Challenge)
	upgradeResp, err := http.PostForm(ts.URL+"/"+minted.Path, url.Values{"challenge": {response}})
	require.NoError(t, err)
	defer upgradeResp.Body.Close()
	require.Equal(t, http.StatusOK, upgradeResp.StatusCode)

	var upgraded metadata.FileMetadata
	mustDecode(t, upgradeResp.Body, &upgraded)
	require.True(t, upgraded.Authenticated)
	require.NotEqual(t, minted.Path, upgraded.Path)
	require.NotEqual(t, minted.UploadKey, upgraded.UploadKey)

	// The pre-upgrade ticket is gone.
	staleResp, err := http.Get(ts.URL + "/" + minted.Path + "?status=true")
	require.NoError(t, err)
	defer staleResp.Body.Close()
	require.Equal(t, http.StatusNotFound, staleResp.StatusCode)
}

// TestUpgrade_WrongChallengeResponseIsUnauthorized proves a garbage
// response is rejected with 401 Unauthorized.
func TestUpgrade_WrongChallengeResponseIsUnauthorized(t *testing.T) {
	s := testServerWithUsers(t, nil)
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	mintResp, err := http.PostForm(ts.URL+"/report.pdf", url.Values{"user": {"alice"}})
	require.NoError(t, err)
	var minted metadata.FileMetadata
	mustDecode(t, mintResp.Body, &minted)
	mintResp.Body.Close()

	upgradeResp, err := http.PostForm(ts.URL+"/"+minted.Path, url.Values{"challenge": {"not-a-signature"}})
	require.NoError(t, err)
	defer upgradeResp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, upgradeResp.StatusCode)
}
