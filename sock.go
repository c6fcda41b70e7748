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
	"fmt"
	"net"
	"strconv"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// ResolveAddr turns an IP literal (v4 dotted-quad or v6 textual, never a
// hostname) and a port into a sockaddr.
func ResolveAddr(host string, port int) (unix.Sockaddr, error) {
	if port < 1 || port > 65534 {
		return nil, errors.Errorf("port out of range: %d", port)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return nil, errors.Errorf("not an IP literal: %s", host)
	}
	if ip4 := ip.To4(); ip4 != nil {
		sa := &unix.SockaddrInet4{Port: port}
		copy(sa.Addr[:], ip4)
		return sa, nil
	}
	sa := &unix.SockaddrInet6{Port: port}
	copy(sa.Addr[:], ip.To16())
	return sa, nil
}

// NewUDPSocket creates a non-blocking UDP socket of the same family as
// addr, marks it don't-fragment so path-MTU problems surface as EMSGSIZE,
// and applies the DSCP value if nonzero. When bind is true the socket is
// bound to addr (listener role); otherwise addr only selects the family.
func NewUDPSocket(addr unix.Sockaddr, bind bool, dscp int) (int, error) {
	var domain int
	switch addr.(type) {
	case *unix.SockaddrInet4:
		domain = unix.AF_INET
	case *unix.SockaddrInet6:
		domain = unix.AF_INET6
	default:
		return -1, errors.Errorf("unsupported address family %T", addr)
	}
	fd, err := unix.Socket(domain, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, unix.IPPROTO_UDP)
	if err != nil {
		return -1, errors.Wrap(err, "socket")
	}
	if domain == unix.AF_INET {
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_IP, unix.IP_MTU_DISCOVER, unix.IP_PMTUDISC_DO); err != nil {
			unix.Close(fd)
			return -1, errors.Wrap(err, "IP_MTU_DISCOVER")
		}
		if dscp > 0 {
			if err := unix.SetsockoptInt(fd, unix.IPPROTO_IP, unix.IP_TOS, dscp<<2); err != nil {
				unix.Close(fd)
				return -1, errors.Wrap(err, "IP_TOS")
			}
		}
	} else {
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_MTU_DISCOVER, unix.IPV6_PMTUDISC_DO); err != nil {
			unix.Close(fd)
			return -1, errors.Wrap(err, "IPV6_MTU_DISCOVER")
		}
		if dscp > 0 {
			if err := unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_TCLASS, dscp<<2); err != nil {
				unix.Close(fd)
				return -1, errors.Wrap(err, "IPV6_TCLASS")
			}
		}
	}
	if bind {
		if err := unix.Bind(fd, addr); err != nil {
			unix.Close(fd)
			return -1, errors.Wrap(err, "bind")
		}
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, errors.Wrap(err, "set nonblock")
	}
	return fd, nil
}

// SockaddrString formats a sockaddr as host:port for logging.
func SockaddrString(sa unix.Sockaddr) string {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return net.JoinHostPort(net.IP(a.Addr[:]).String(), strconv.Itoa(a.Port))
	case *unix.SockaddrInet6:
		return net.JoinHostPort(net.IP(a.Addr[:]).String(), strconv.Itoa(a.Port))
	case nil:
		return "<unset>"
	default:
		return fmt.Sprintf("%v", sa)
	}
}
