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
	"encoding/binary"
	"os"

	"github.com/pkg/errors"
)

// BumpNoncePrefix implements the prefix-file protocol: read the stored
// 4-byte big-endian counter, increment it, write it back, and return the
// incremented value as this run's nonce prefix. Prefix 0 is reserved, so a
// counter that has reached 0xffffffff is refused rather than wrapped — the
// key pair must be retired before the prefix space runs out.
func BumpNoncePrefix(path string) (uint32, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, errors.Wrap(err, "nonce prefix file")
	}
	if len(raw) != noncePrefixSize {
		return 0, errors.Errorf("nonce prefix file %s: expected %d bytes, got %d", path, noncePrefixSize, len(raw))
	}
	prefix := binary.BigEndian.Uint32(raw) + 1
	if prefix == 0 {
		return 0, errors.Errorf("nonce prefix file %s: prefix space exhausted", path)
	}
	var buf [noncePrefixSize]byte
	binary.BigEndian.PutUint32(buf[:], prefix)
	if err := os.WriteFile(path, buf[:], 0600); err != nil {
		return 0, errors.Wrap(err, "nonce prefix file")
	}
	return prefix, nil
}
