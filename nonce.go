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
	"bytes"
	"encoding/binary"
)

const (
	// NonceSize is the size of the per-packet nonce carried on the wire.
	// | prefix(4 bytes) | counter(20 bytes) |
	NonceSize = 24

	// noncePrefixSize is the leading portion drawn from the persistent
	// prefix file; it never changes during a run.
	noncePrefixSize = 4
)

// Nonce is a 24-byte crypto_box nonce: a 4-byte big-endian prefix followed
// by a 20-byte big-endian counter. The prefix is burned once per run from
// the prefix file, the counter advances by one for every datagram sent.
type Nonce [NonceSize]byte

// SetPrefix stores the per-run prefix in the leading 4 bytes.
func (n *Nonce) SetPrefix(prefix uint32) {
	binary.BigEndian.PutUint32(n[:noncePrefixSize], prefix)
}

// Prefix returns the per-run prefix.
func (n *Nonce) Prefix() uint32 {
	return binary.BigEndian.Uint32(n[:noncePrefixSize])
}

// Increment advances the trailing 20-byte counter as a big-endian integer
// with carry. The prefix bytes are never touched, so a (practically
// unreachable) counter exhaustion wraps the counter only.
func (n *Nonce) Increment() {
	for i := NonceSize - 1; i >= noncePrefixSize; i-- {
		n[i]++
		if n[i] != 0 {
			return
		}
	}
}

// Compare orders two nonces byte-wise over the full 24 bytes, prefix
// included. A peer that restarts bumps its prefix, so everything it sends
// afterwards compares greater than the previous run's watermark.
func (n *Nonce) Compare(other *Nonce) int {
	return bytes.Compare(n[:], other[:])
}
