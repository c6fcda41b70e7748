package tappet

import (
	"testing"
)

func TestSnmpRaiseOnlyGrows(t *testing.T) {
	s := newSnmp()
	s.raise(&s.BiggestRcvd, 1500)
	s.raise(&s.BiggestRcvd, 128)
	if got := s.Copy().BiggestRcvd; got != 1500 {
		t.Fatalf("BiggestRcvd = %d, want 1500", got)
	}
	s.raise(&s.BiggestRcvd, 2000)
	if got := s.Copy().BiggestRcvd; got != 2000 {
		t.Fatalf("BiggestRcvd = %d, want 2000", got)
	}
}

func TestSnmpSliceMatchesHeader(t *testing.T) {
	s := newSnmp()
	s.add(&s.FramesIn, 3)
	header, values := s.Header(), s.ToSlice()
	if len(header) != len(values) {
		t.Fatalf("header has %d fields, slice has %d", len(header), len(values))
	}
	for i, name := range header {
		if name == "FramesIn" && values[i] != "3" {
			t.Fatalf("FramesIn = %s", values[i])
		}
	}
}
