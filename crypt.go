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
	"golang.org/x/crypto/nacl/box"
)

// KeySize is the size of curve25519 keys and of the precomputed shared key.
const KeySize = 32

// Overhead is the per-datagram authentication overhead: the poly1305 tag
// prepended to the ciphertext by crypto_box. A wire datagram is therefore
// NonceSize + Overhead + len(plaintext) bytes.
const Overhead = box.Overhead

// Precompute derives the shared per-pair key from our secret key and the
// peer's public key. Both peers arrive at the same key.
func Precompute(secret, peerPublic *[KeySize]byte) *[KeySize]byte {
	shared := new([KeySize]byte)
	box.Precompute(shared, peerPublic, secret)
	return shared
}

// seal encrypts and authenticates plain under key and nonce, appending the
// result to dst. The output is tag ‖ ciphertext, the classic crypto_box
// layout with the zero framing bytes stripped.
func seal(dst, plain []byte, nonce *Nonce, key *[KeySize]byte) []byte {
	return box.SealAfterPrecomputation(dst, plain, (*[NonceSize]byte)(nonce), key)
}

// open authenticates and decrypts ct under key and nonce, appending the
// plaintext to dst. ok is false on any authentication failure.
func open(dst, ct []byte, nonce *Nonce, key *[KeySize]byte) ([]byte, bool) {
	return box.OpenAfterPrecomputation(dst, ct, (*[NonceSize]byte)(nonce), key)
}
