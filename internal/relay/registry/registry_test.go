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

package registry

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha512"
	"encoding/binary"
	"encoding/pem"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/ssh"

	"bytebeam/internal/relay/keydirectory"
	"bytebeam/internal/relay/metadata"
	"bytebeam/internal/relay/relayerr"
	"bytebeam/internal/relay/tier"
)

func testTiers() (tier.Policy, tier.Policy) {
	pub := tier.Public
	pub.CullTime = time.Hour
	auth := tier.Authenticated
	return pub, auth
}

func TestMintAndBeginUpload_RoundTrip(t *testing.T) {
	pub, auth := testTiers()
	r := New(pub, auth, nil, nil, nil)

	m := r.Mint("hello.txt", nil)
	if m.UploadKey == "" || m.Path == "" {
		t.Fatal("Mint() returned empty path/upload_key")
	}

	producer, policy, err := r.BeginUpload(m.Path, m.UploadKey)
	if err != nil {
		t.Fatalf("BeginUpload: %v", err)
	}
	if policy.Name != "public" {
		t.Errorf("BeginUpload() policy = %s, want public", policy.Name)
	}

	if err := producer.Send(context.Background(), []byte("abcdef")); err != nil {
		t.Fatalf("Send: %v", err)
	}
}

func TestBeginUpload_SecondAttemptConflicts(t *testing.T) {
	pub, auth := testTiers()
	r := New(pub, auth, nil, nil, nil)
	m := r.Mint("f", nil)

	if _, _, err := r.BeginUpload(m.Path, m.UploadKey); err != nil {
		t.Fatalf("first BeginUpload: %v", err)
	}
	if _, _, err := r.BeginUpload(m.Path, m.UploadKey); err != relayerr.Conflict {
		t.Errorf("second BeginUpload = %v, want Conflict", err)
	}
}

func TestBeginUpload_WrongKeyForbidden(t *testing.T) {
	pub, auth := testTiers()
	r := New(pub, auth, nil, nil, nil)
	m := r.Mint("f", nil)

	if _, _, err := r.BeginUpload(m.Path, "wrong-key"); err != relayerr.Forbidden {
		t.Errorf("BeginUpload with wrong key = %v, want Forbidden", err)
	}
}

func TestBeginDownload_SecondAttemptConflictsWhileInProgress(t *testing.T) {
	pub, auth := testTiers()
	r := New(pub, auth, nil, nil, nil)
	m := r.Mint("f", nil)

	if _, _, err := r.BeginDownload(m.Path); err != nil {
		t.Fatalf("first BeginDownload: %v", err)
	}
	if _, _, err := r.BeginDownload(m.Path); err != relayerr.Conflict {
		t.Errorf("second BeginDownload = %v, want Conflict", err)
	}
}

func TestBeginDownload_AfterCompleteIsGoneEquivalent(t *testing.T) {
	pub, auth := testTiers()
	r := New(pub, auth, nil, nil, nil)
	m := r.Mint("f", nil)

	if _, _, err := r.BeginDownload(m.Path); err != nil {
		t.Fatalf("BeginDownload: %v", err)
	}
	if err := r.EndDownload(m.Path); err != nil {
		t.Fatalf("EndDownload: %v", err)
	}
	if _, _, err := r.BeginDownload(m.Path); err != relayerr.Conflict {
		t.Errorf("BeginDownload after Complete = %v, want Conflict (HTTP layer maps Complete to 410 separately)", err)
	}
}

func TestDelete_UnblocksPendingConsumer(t *testing.T) {
	pub, auth := testTiers()
	r := New(pub, auth, nil, nil, nil)
	m := r.Mint("f", nil)

	consumer, _, err := r.BeginDownload(m.Path)
	if err != nil {
		t.Fatalf("BeginDownload: %v", err)
	}

	r.Delete(m.Path)

	_, ok, err := consumer.Receive(context.Background())
	if err != nil || ok {
		t.Fatalf("Receive() after Delete = ok=%v err=%v, want ok=false err=nil", ok, err)
	}
}

func TestDelete_ThenBeginUploadIsNotFound(t *testing.T) {
	pub, auth := testTiers()
	r := New(pub, auth, nil, nil, nil)
	m := r.Mint("f", nil)
	r.Delete(m.Path)

	if _, _, err := r.BeginUpload(m.Path, m.UploadKey); err != relayerr.NotFound {
		t.Errorf("BeginUpload after Delete = %v, want NotFound", err)
	}
}

func TestReturnDownload_ThenResume(t *testing.T) {
	pub, auth := testTiers()
	r := New(pub, auth, nil, nil, nil)
	m := r.Mint("f", nil)

	consumer, _, err := r.BeginDownload(m.Path)
	if err != nil {
		t.Fatalf("BeginDownload: %v", err)
	}
	if !r.ReturnDownload(m.Path, consumer) {
		t.Fatal("ReturnDownload() = false while InProgress")
	}

	snap, err := r.GetFileMetadata(m.Path)
	if err != nil {
		t.Fatalf("GetFileMetadata: %v", err)
	}
	if snap.Download != metadata.Paused {
		t.Errorf("Download state = %s, want Paused", snap.Download)
	}

	if _, _, err := r.BeginDownload(m.Path); err != nil {
		t.Errorf("resuming BeginDownload: %v", err)
	}
}

func TestCull_RemovesOnlyStaleWaitingTickets(t *testing.T) {
	pub, auth := testTiers()
	pub.CullTime = 10 * time.Millisecond
	r := New(pub, auth, nil, nil, nil)

	waiting := r.Mint("waiting.txt", nil)
	active := r.Mint("active.txt", nil)
	if _, _, err := r.BeginUpload(active.Path, active.UploadKey); err != nil {
		t.Fatalf("BeginUpload: %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	removed := r.Cull()
	if removed != 1 {
		t.Fatalf("Cull() removed = %d, want 1", removed)
	}

	if _, err := r.GetFileMetadata(waiting.Path); err != relayerr.NotFound {
		t.Errorf("waiting ticket survived cull: err=%v", err)
	}
	if _, err := r.GetFileMetadata(active.Path); err != nil {
		t.Errorf("active (non-waiting) ticket was culled: %v", err)
	}
}

func TestRedact_NeverLeaksViaRegistrySnapshot(t *testing.T) {
	pub, auth := testTiers()
	r := New(pub, auth, nil, nil, nil)
	m := r.Mint("secret-plans.txt", nil)

	snap, err := r.GetFileMetadata(m.Path)
	if err != nil {
		t.Fatalf("GetFileMetadata: %v", err)
	}
	redacted := snap.Redact()
	if redacted.FileName != "null" || redacted.UploadKey != "null" {
		t.Errorf("Redact() = %+v, want file_name/upload_key = null", redacted)
	}
}

// writeSSHString and signedData mirror keydirectory/sshsig.go's unexported
// wire helpers well enough to build a PROTOCOL.sshsig envelope from outside
// the package, the same way `ssh-keygen -Y sign -n bytebeam` would.
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
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

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

func testAuthenticatedUser(t *testing.T) (dir *keydirectory.Directory, signer ssh.Signer, user string) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	signer, err = ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("NewSignerFromKey: %v", err)
	}
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		t.Fatalf("NewPublicKey: %v", err)
	}
	line := string(ssh.MarshalAuthorizedKey(sshPub))
	line = line[:len(line)-1] + " alice\n"

	dir, err = keydirectory.New([]string{line}, "")
	if err != nil {
		t.Fatalf("keydirectory.New: %v", err)
	}
	return dir, signer, "alice"
}

func TestUpgrade_SuccessfulChallengeReKeysUnderAuthenticatedTier(t *testing.T) {
	pub, auth := testTiers()
	dir, signer, user := testAuthenticatedUser(t)
	r := New(pub, auth, dir, nil, nil)

	m := r.Mint("f", &user)
	response := signChallenge(t, signer, m.Challenge)

	upgraded, ok, err := r.Upgrade(m.Path, []string{response})
	if err != nil {
		t.Fatalf("Upgrade: %v", err)
	}
	if !ok {
		t.Fatal("Upgrade() = false for a validly signed challenge")
	}
	if !upgraded.Authenticated {
		t.Error("upgraded metadata Authenticated = false")
	}
	if upgraded.Path == m.Path || upgraded.UploadKey == m.UploadKey {
		t.Error("Upgrade() did not issue a new path/upload_key")
	}

	// The old ticket no longer resolves.
	if _, err := r.GetFileMetadata(m.Path); err != relayerr.NotFound {
		t.Errorf("old ticket after Upgrade: err=%v, want NotFound", err)
	}

	// The new ticket accepts an upload at the authenticated tier's capacity.
	producer, policy, err := r.BeginUpload(upgraded.Path, upgraded.UploadKey)
	if err != nil {
		t.Fatalf("BeginUpload on upgraded ticket: %v", err)
	}
	if policy.Name != "authenticated" {
		t.Errorf("BeginUpload() policy = %s, want authenticated", policy.Name)
	}
	if producer.Cap() != auth.CacheSize {
		t.Errorf("producer capacity = %d, want authenticated tier's %d", producer.Cap(), auth.CacheSize)
	}
}

func TestUpgrade_WrongSignerFailsAndLeavesTicketUntouched(t *testing.T) {
	pub, auth := testTiers()
	dir, _, user := testAuthenticatedUser(t)
	r := New(pub, auth, dir, nil, nil)

	m := r.Mint("f", &user)

	// Sign with an unregistered key instead of the one on file for "alice".
	_, otherPriv, _ := ed25519.GenerateKey(rand.Reader)
	otherSigner, _ := ssh.NewSignerFromKey(otherPriv)
	response := signChallenge(t, otherSigner, m.Challenge)

	_, ok, err := r.Upgrade(m.Path, []string{response})
	if err != nil {
		t.Fatalf("Upgrade: %v", err)
	}
	if ok {
		t.Fatal("Upgrade() = true for a signature from an unregistered key")
	}

	// The original ticket is untouched: still public, still resolvable.
	snap, err := r.GetFileMetadata(m.Path)
	if err != nil {
		t.Fatalf("GetFileMetadata after failed Upgrade: %v", err)
	}
	if snap.Authenticated {
		t.Error("ticket marked Authenticated after a failed Upgrade")
	}
	if snap.Path != m.Path || snap.UploadKey != m.UploadKey {
		t.Error("failed Upgrade() mutated path/upload_key")
	}
}

// TestUpgrade_TriesEveryResponseBeforeGivingUp covers Open Question (a):
// upgrade tries every challenge response and succeeds on the first match,
// rather than bailing out on the first non-matching one.
func TestUpgrade_TriesEveryResponseBeforeGivingUp(t *testing.T) {
	pub, auth := testTiers()
	dir, signer, user := testAuthenticatedUser(t)
	r := New(pub, auth, dir, nil, nil)

	m := r.Mint("f", &user)
	good := signChallenge(t, signer, m.Challenge)
	responses := []string{"garbage-1", "garbage-2", good}

	_, ok, err := r.Upgrade(m.Path, responses)
	if err != nil {
		t.Fatalf("Upgrade: %v", err)
	}
	if !ok {
		t.Fatal("Upgrade() = false when a later response in the list is valid")
	}
}
