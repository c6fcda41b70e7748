package tappet

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempPrefix(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nonce")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("failed to write prefix file: %v", err)
	}
	return path
}

func TestBumpNoncePrefix(t *testing.T) {
	path := writeTempPrefix(t, []byte{0, 0, 0, 41})

	prefix, err := BumpNoncePrefix(path)
	if err != nil {
		t.Fatalf("BumpNoncePrefix: %v", err)
	}
	if prefix != 42 {
		t.Fatalf("prefix = %d, want 42", prefix)
	}

	// a second run must see the bumped value persisted
	again, err := BumpNoncePrefix(path)
	if err != nil {
		t.Fatalf("BumpNoncePrefix: %v", err)
	}
	if again != 43 {
		t.Fatalf("second prefix = %d, want 43", again)
	}
}

func TestBumpNoncePrefixFreshFile(t *testing.T) {
	path := writeTempPrefix(t, []byte{0, 0, 0, 0})
	prefix, err := BumpNoncePrefix(path)
	if err != nil {
		t.Fatalf("BumpNoncePrefix: %v", err)
	}
	if prefix != 1 {
		t.Fatalf("prefix = %d, want 1", prefix)
	}
}

func TestBumpNoncePrefixExhausted(t *testing.T) {
	path := writeTempPrefix(t, []byte{0xff, 0xff, 0xff, 0xff})
	if _, err := BumpNoncePrefix(path); err == nil {
		t.Fatalf("BumpNoncePrefix accepted an exhausted prefix space")
	}
}

func TestBumpNoncePrefixMalformed(t *testing.T) {
	if _, err := BumpNoncePrefix(writeTempPrefix(t, []byte{1, 2})); err == nil {
		t.Fatalf("BumpNoncePrefix accepted a short file")
	}
	if _, err := BumpNoncePrefix(writeTempPrefix(t, []byte{1, 2, 3, 4, 5})); err == nil {
		t.Fatalf("BumpNoncePrefix accepted a long file")
	}
	if _, err := BumpNoncePrefix(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatalf("BumpNoncePrefix accepted a missing file")
	}
}
