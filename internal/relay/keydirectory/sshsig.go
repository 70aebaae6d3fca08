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
	"encoding/binary"
	"encoding/pem"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/ssh"
)

// sshsigMagic is the fixed six-byte preamble of the PROTOCOL.sshsig wire
// format (github.com/openssh/openssh-portable, ssh-keygen -Y sign/verify).
const sshsigMagic = "SSHSIG"

// armoredSignature is one decoded "-----BEGIN SSH SIGNATURE-----" envelope.
type armoredSignature struct {
	publicKey ssh.PublicKey
	namespace string
	hashAlg   string
	signature *ssh.Signature
}

// parseArmoredSignature decodes a PEM-wrapped SSHSIG blob as produced by
// `ssh-keygen -Y sign -n <namespace>`.
func parseArmoredSignature(pemText []byte) (*armoredSignature, error) {
	block, _ := pem.Decode(pemText)
	if block == nil || block.Type != "SSH SIGNATURE" {
		return nil, errors.New("keydirectory: not an SSH SIGNATURE PEM block")
	}
	return decodeSigBlob(block.Bytes)
}

func decodeSigBlob(b []byte) (*armoredSignature, error) {
	r := bytes.NewReader(b)

	magic := make([]byte, len(sshsigMagic))
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != sshsigMagic {
		return nil, errors.New("keydirectory: bad SSHSIG magic")
	}

	var version uint32
	if err := binary.Read(r, binary.BigEndian, &version); err != nil {
		return nil, fmt.Errorf("keydirectory: reading signature version: %w", err)
	}

	pubKeyBlob, err := readSSHString(r)
	if err != nil {
		return nil, fmt.Errorf("keydirectory: reading public key: %w", err)
	}
	namespace, err := readSSHString(r)
	if err != nil {
		return nil, fmt.Errorf("keydirectory: reading namespace: %w", err)
	}
	if _, err := readSSHString(r); err != nil { // reserved, currently unused
		return nil, fmt.Errorf("keydirectory: reading reserved field: %w", err)
	}
	hashAlg, err := readSSHString(r)
	if err != nil {
		return nil, fmt.Errorf("keydirectory: reading hash algorithm: %w", err)
	}
	sigBlob, err := readSSHString(r)
	if err != nil {
		return nil, fmt.Errorf("keydirectory: reading signature blob: %w", err)
	}

	pub, err := ssh.ParsePublicKey(pubKeyBlob)
	if err != nil {
		return nil, fmt.Errorf("keydirectory: parsing embedded public key: %w", err)
	}

	var sig ssh.Signature
	if err := ssh.Unmarshal(sigBlob, &sig); err != nil {
		return nil, fmt.Errorf("keydirectory: parsing signature blob: %w", err)
	}

	return &armoredSignature{
		publicKey: pub,
		namespace: string(namespace),
		hashAlg:   string(hashAlg),
		signature: &sig,
	}, nil
}

func readSSHString(r *bytes.Reader) ([]byte, error) {
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return nil, err
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func writeSSHString(buf *bytes.Buffer, s []byte) {
	var lenBytes [4]byte
	binary.BigEndian.PutUint32(lenBytes[:], uint32(len(s)))
	buf.Write(lenBytes[:])
	buf.Write(s)
}

// signedData reconstructs the exact byte sequence the signer hashed and
// signed: MAGIC || namespace || reserved || hash_algorithm || H(message).
func signedData(namespace, hashAlg string, hashedMessage []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(sshsigMagic)
	writeSSHString(&buf, []byte(namespace))
	writeSSHString(&buf, nil) // reserved
	writeSSHString(&buf, []byte(hashAlg))
	writeSSHString(&buf, hashedMessage)
	return buf.Bytes()
}
