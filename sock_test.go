package tappet

import (
	"testing"

	"golang.org/x/sys/unix"
)

func TestResolveAddr(t *testing.T) {
	sa, err := ResolveAddr("192.0.2.1", 4500)
	if err != nil {
		t.Fatalf("ResolveAddr: %v", err)
	}
	v4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		t.Fatalf("expected SockaddrInet4, got %T", sa)
	}
	if v4.Addr != [4]byte{192, 0, 2, 1} || v4.Port != 4500 {
		t.Fatalf("unexpected sockaddr: %+v", v4)
	}

	sa, err = ResolveAddr("2001:db8::1", 4500)
	if err != nil {
		t.Fatalf("ResolveAddr: %v", err)
	}
	if _, ok := sa.(*unix.SockaddrInet6); !ok {
		t.Fatalf("expected SockaddrInet6, got %T", sa)
	}
}

func TestResolveAddrRejects(t *testing.T) {
	if _, err := ResolveAddr("example.com", 4500); err == nil {
		t.Fatalf("ResolveAddr accepted a hostname")
	}
	if _, err := ResolveAddr("", 4500); err == nil {
		t.Fatalf("ResolveAddr accepted an empty address")
	}
	for _, port := range []int{0, -1, 65535, 70000} {
		if _, err := ResolveAddr("192.0.2.1", port); err == nil {
			t.Fatalf("ResolveAddr accepted port %d", port)
		}
	}
}

func TestNewUDPSocketListener(t *testing.T) {
	addr, err := ResolveAddr("127.0.0.1", 1)
	if err != nil {
		t.Fatalf("ResolveAddr: %v", err)
	}
	// port 1 needs privileges; rewrite to an ephemeral pick
	addr.(*unix.SockaddrInet4).Port = 0

	fd, err := NewUDPSocket(addr, true, 46)
	if err != nil {
		t.Fatalf("NewUDPSocket: %v", err)
	}
	defer unix.Close(fd)

	if v, err := unix.GetsockoptInt(fd, unix.IPPROTO_IP, unix.IP_MTU_DISCOVER); err != nil || v != unix.IP_PMTUDISC_DO {
		t.Fatalf("IP_MTU_DISCOVER = %d (%v), want IP_PMTUDISC_DO", v, err)
	}
	if v, err := unix.GetsockoptInt(fd, unix.IPPROTO_IP, unix.IP_TOS); err != nil || v != 46<<2 {
		t.Fatalf("IP_TOS = %d (%v), want %d", v, err, 46<<2)
	}

	// non-blocking: a read on the fresh socket must not hang
	buf := make([]byte, 16)
	if _, _, err := unix.Recvfrom(fd, buf, 0); err != unix.EAGAIN && err != unix.EWOULDBLOCK {
		t.Fatalf("expected EAGAIN on empty socket, got %v", err)
	}
}

func TestSockaddrString(t *testing.T) {
	sa, _ := ResolveAddr("127.0.0.1", 29900)
	if got := SockaddrString(sa); got != "127.0.0.1:29900" {
		t.Fatalf("SockaddrString = %q", got)
	}
	sa6, _ := ResolveAddr("2001:db8::1", 29900)
	if got := SockaddrString(sa6); got != "[2001:db8::1]:29900" {
		t.Fatalf("SockaddrString = %q", got)
	}
	if got := SockaddrString(nil); got != "<unset>" {
		t.Fatalf("SockaddrString(nil) = %q", got)
	}
}
