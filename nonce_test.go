package tappet

import (
	"bytes"
	"testing"
)

func TestNoncePrefixRoundTrip(t *testing.T) {
	var n Nonce
	n.SetPrefix(0xdeadbeef)
	if got := n.Prefix(); got != 0xdeadbeef {
		t.Fatalf("prefix: got %#x", got)
	}
	if !bytes.Equal(n[:4], []byte{0xde, 0xad, 0xbe, 0xef}) {
		t.Fatalf("prefix bytes not big-endian: %x", n[:4])
	}
}

func TestNonceIncrement(t *testing.T) {
	var n Nonce
	n.SetPrefix(1)

	n.Increment()
	if n[NonceSize-1] != 1 {
		t.Fatalf("first increment: %x", n[:])
	}

	// carry across one byte
	n[NonceSize-1] = 0xff
	n.Increment()
	if n[NonceSize-1] != 0 || n[NonceSize-2] != 1 {
		t.Fatalf("single carry: %x", n[:])
	}

	// carry rippling across several bytes
	for i := 5; i < NonceSize; i++ {
		n[i] = 0xff
	}
	n[4] = 0x07
	n.Increment()
	if n[4] != 0x08 {
		t.Fatalf("ripple carry into leading counter byte: %x", n[:])
	}
	for i := 5; i < NonceSize; i++ {
		if n[i] != 0 {
			t.Fatalf("ripple carry left residue: %x", n[:])
		}
	}
}

func TestNonceIncrementNeverTouchesPrefix(t *testing.T) {
	var n Nonce
	n.SetPrefix(0x01020304)
	for i := noncePrefixSize; i < NonceSize; i++ {
		n[i] = 0xff
	}
	n.Increment() // counter exhaustion wraps the counter only
	if n.Prefix() != 0x01020304 {
		t.Fatalf("prefix mutated on counter wrap: %x", n[:])
	}
	for i := noncePrefixSize; i < NonceSize; i++ {
		if n[i] != 0 {
			t.Fatalf("counter did not wrap to zero: %x", n[:])
		}
	}
}

func TestNonceCompare(t *testing.T) {
	var a, b Nonce
	a.SetPrefix(1)
	b.SetPrefix(1)

	b.Increment()
	if a.Compare(&b) >= 0 {
		t.Fatalf("counter must order nonces")
	}
	a.Increment()
	if a.Compare(&b) != 0 {
		t.Fatalf("equal nonces must compare equal")
	}

	// a restarted peer bumps its prefix; everything it sends afterwards
	// must compare greater than the old run's nonces
	var old Nonce
	old.SetPrefix(1)
	for i := 0; i < 1000; i++ {
		old.Increment()
	}
	var fresh Nonce
	fresh.SetPrefix(2)
	fresh.Increment()
	if fresh.Compare(&old) <= 0 {
		t.Fatalf("bumped prefix must dominate any previous counter")
	}
}
