// The MIT License (MIT)
//
// # Copyright (c) 2024 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package tappet

import (
	"crypto/rand"
	"encoding/hex"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/crypto/nacl/box"
)

// A key file holds one line: 64 hex characters and a trailing newline,
// decoding to a 32-byte curve25519 key.

// LoadKey reads and decodes a key file.
func LoadKey(path string) (*[KeySize]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "key file")
	}
	line := raw
	if n := len(line); n > 0 && line[n-1] == '\n' {
		line = line[:n-1]
	}
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	if len(line) != hex.EncodedLen(KeySize) {
		return nil, errors.Errorf("key file %s: expected %d hex characters, got %d", path, hex.EncodedLen(KeySize), len(line))
	}
	key := new([KeySize]byte)
	if _, err := hex.Decode(key[:], line); err != nil {
		return nil, errors.Wrapf(err, "key file %s", path)
	}
	return key, nil
}

// WriteKey writes key to path in the key-file format with the given mode.
func WriteKey(path string, key *[KeySize]byte, mode os.FileMode) error {
	line := make([]byte, hex.EncodedLen(KeySize)+1)
	hex.Encode(line, key[:])
	line[len(line)-1] = '\n'
	return errors.Wrap(os.WriteFile(path, line, mode), "key file")
}

// GenerateKeyPair creates a fresh curve25519 key pair and writes it as
// base.pub (0644) and base.sec (0600).
func GenerateKeyPair(base string) (pubPath, secPath string, err error) {
	public, secret, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return "", "", errors.Wrap(err, "generate key")
	}
	pubPath, secPath = base+".pub", base+".sec"
	if err := WriteKey(secPath, secret, 0600); err != nil {
		return "", "", err
	}
	if err := WriteKey(pubPath, public, 0644); err != nil {
		return "", "", err
	}
	return pubPath, secPath, nil
}
