// vault.go - cryptographic vault for remote-device key material.
// Copyright (C) 2026  SimpleX Chat authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package vault seals one key payload to a PEM file on disk under a
// passphrase-derived key. cmd/remoted uses it for its long-lived
// identity key; the RemoteDevice local private keys are stored by the
// registry in its database and are not sealed by this package. It reuses the mixnet client's key-stretch-then-secretbox
// construction (crypto/vault/vault.go in the teacher repository).
package vault

import (
	"bytes"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"io/ioutil"
	"os"

	"github.com/magical/argon2"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	saltSize           = 8
	passphraseMinSize  = 12
	secretboxNonceSize = 24
	keyLen             = 32
)

// Vault seals/opens a single PEM-encoded payload on disk under a label
// (cmd/remoted passes its role, "host" or "satellite") and a
// passphrase-derived key.
type Vault struct {
	Label      string
	Passphrase string
	Path       string
}

// New validates the passphrase length and returns a Vault.
func New(label, passphrase, path string) (*Vault, error) {
	if len(passphrase) < passphraseMinSize {
		return nil, errors.New("vault: passphrase too short")
	}
	return &Vault{Label: label, Passphrase: passphrase, Path: path}, nil
}

func (v *Vault) stretch(passphrase string) ([]byte, error) {
	if len(passphrase) <= saltSize {
		return nil, errors.New("vault: passphrase too short to carry a salt")
	}
	salt := passphrase[0:saltSize]
	pass := passphrase[saltSize:]

	const (
		parallelism = 2
		memoryKiB   = int64(1 << 16)
		iterations  = 32
	)
	return argon2.Key([]byte(pass), []byte(salt), iterations, parallelism, memoryKiB, keyLen)
}

// Open returns the decrypted payload from the vault file.
func (v *Vault) Open() ([]byte, error) {
	pemPayload, err := ioutil.ReadFile(v.Path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(pemPayload)
	if block == nil {
		return nil, errors.New("vault: failed to decode pem file")
	}
	if len(block.Bytes) < secretboxNonceSize {
		return nil, errors.New("vault: truncated vault payload")
	}

	var nonce [secretboxNonceSize]byte
	copy(nonce[:], block.Bytes[:secretboxNonceSize])

	stretched, err := v.stretch(v.Passphrase)
	if err != nil {
		return nil, err
	}
	var key [keyLen]byte
	copy(key[:], stretched)

	ciphertext := block.Bytes[secretboxNonceSize:]
	plaintext, ok := secretbox.Open(nil, ciphertext, &nonce, &key)
	if !ok {
		return nil, errors.New("vault: secretbox authentication failed")
	}
	return plaintext, nil
}

// Seal encrypts plaintext and writes it to the vault file, 0600, PEM
// encoded with the label recorded in a header for operator debugging.
func (v *Vault) Seal(plaintext []byte) error {
	stretched, err := v.stretch(v.Passphrase)
	if err != nil {
		return err
	}
	var key [keyLen]byte
	copy(key[:], stretched)

	var nonce [secretboxNonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return err
	}

	ciphertext := secretbox.Seal(nil, plaintext, &nonce, &key)
	payload := make([]byte, 0, secretboxNonceSize+len(ciphertext))
	payload = append(payload, nonce[:]...)
	payload = append(payload, ciphertext...)

	block := &pem.Block{
		Type:    "REMOTE DEVICE KEY",
		Headers: map[string]string{"label": v.Label},
		Bytes:   payload,
	}
	buf := new(bytes.Buffer)
	if err := pem.Encode(buf, block); err != nil {
		return err
	}
	return ioutil.WriteFile(v.Path, buf.Bytes(), os.FileMode(0600))
}
