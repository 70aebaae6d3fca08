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

package keydirectory

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha512"
	"encoding/binary"
	"encoding/pem"
	"testing"

	"github.com/google/uuid"
	"golang.org/x/crypto/ssh"
)

// signChallenge builds a PEM-armored SSHSIG envelope the way
// `ssh-keygen -Y sign -n bytebeam` would, for use in tests.
func signChallenge(t *testing.T, signer ssh.Signer, challenge uuid.UUID) string {
	t.Helper()

	hashed := sha512.Sum512([]byte(challenge.String()))
	data := signedData(signatureNamespace, "sha512", hashed[:])

	sig, err := signer.Sign(rand.Reader, data)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	var buf bytes.Buffer
	buf.WriteString(sshsigMagic)
	var versionBytes [4]byte
	binary.BigEndian.PutUint32(versionBytes[:], 1)
	buf.Write(versionBytes[:])
	writeSSHString(&buf, signer.PublicKey().Marshal())
	writeSSHString(&buf, []byte(signatureNamespace))
	writeSSHString(&buf, nil)
	writeSSHString(&buf, []byte("sha512"))
	writeSSHString(&buf, ssh.Marshal(sig))

	block := &pem.Block{Type: "SSH SIGNATURE", Bytes: buf.Bytes()}
	return string(pem.EncodeToMemory(block))
}

func TestVerify_ValidSignatureSucceeds(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("NewSignerFromKey: %v", err)
	}
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		t.Fatalf("NewPublicKey: %v", err)
	}
	line := string(ssh.MarshalAuthorizedKey(sshPub))
	line = line[:len(line)-1] + " alice\n" // authorized_keys comment = user name

	dir, err := New([]string{line}, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	challenge := uuid.New()
	response := signChallenge(t, signer, challenge)

	if !dir.Verify("alice", challenge, response) {
		t.Error("Verify() = false for a validly signed challenge")
	}
}

func TestVerify_WrongUserFails(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(rand.Reader)
	signer, _ := ssh.NewSignerFromKey(priv)
	sshPub, _ := ssh.NewPublicKey(pub)
	line := string(ssh.MarshalAuthorizedKey(sshPub))
	line = line[:len(line)-1] + " alice\n"

	dir, _ := New([]string{line}, "")
	challenge := uuid.New()
	response := signChallenge(t, signer, challenge)

	if dir.Verify("bob", challenge, response) {
		t.Error("Verify() = true for an unregistered user")
	}
}

func TestVerify_GarbageResponseFails(t *testing.T) {
	pub, _, _ := ed25519.GenerateKey(rand.Reader)
	sshPub, _ := ssh.NewPublicKey(pub)
	line := string(ssh.MarshalAuthorizedKey(sshPub))
	line = line[:len(line)-1] + " alice\n"

	dir, _ := New([]string{line}, "")
	if dir.Verify("alice", uuid.New(), "not a signature") {
		t.Error("Verify() = true for garbage input")
	}
}
