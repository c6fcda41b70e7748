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

// Package tappet tunnels Ethernet frames between a local TAP interface and
// a single remote peer over one encrypted UDP flow. Every datagram on the
// wire is nonce(24) ‖ crypto_box ciphertext under a precomputed shared key;
// nonces are strictly increasing, so anything replayed or reordered below
// the receive watermark is dropped before decryption is even attempted.
package tappet

import (
	"encoding/binary"
	"log"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const (
	// bufSize fits a standard Ethernet frame plus crypto framing.
	bufSize = 2048

	// minFrame is the minimum Ethernet frame length. Authenticated
	// plaintexts shorter than this are control traffic, not frames.
	minFrame = 64

	// keepaliveTag ‖ uint16be(biggest received) is the only control
	// message currently defined. Other short plaintexts are reserved.
	keepaliveTag  = 0xFE
	keepaliveSize = 3

	// tickMillis bounds the readiness wait and doubles as the keepalive
	// cadence.
	tickMillis = 10 * 1000
)

// maxFrame caps a single TAP read so the staged datagram, nonce and tag
// included, still fits the ciphertext buffer.
const maxFrame = bufSize - NonceSize - Overhead

// Engine is the tunnel datapath: one loop, two fds, no goroutines. It owns
// the shared key, both nonces, the peer address and the size watermarks;
// nothing else may touch them while Run is live.
type Engine struct {
	tapFD int
	udpFD int

	// stop self-pipe, polled alongside the tunnel fds
	stopR int
	stopW int

	key  *[KeySize]byte
	out  Nonce // last nonce we used; incremented before every send
	in   Nonce // watermark: last nonce we accepted
	peer unix.Sockaddr

	quiet bool
	snmp  *Snmp

	plain  [bufSize]byte
	cipher [bufSize]byte
}

// NewEngine wires an engine over an attached TAP fd and a UDP socket fd,
// both non-blocking. peer is the configured remote for the connector role
// and nil for a listener, which learns its peer from the first
// authenticated datagram.
func NewEngine(tapFD, udpFD int, key *[KeySize]byte, noncePrefix uint32, peer unix.Sockaddr, quiet bool) (*Engine, error) {
	if noncePrefix == 0 {
		return nil, errors.New("nonce prefix 0 is reserved")
	}
	var pipe [2]int
	if err := unix.Pipe2(pipe[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return nil, errors.Wrap(err, "stop pipe")
	}
	e := &Engine{
		tapFD: tapFD,
		udpFD: udpFD,
		stopR: pipe[0],
		stopW: pipe[1],
		key:   key,
		peer:  peer,
		quiet: quiet,
		snmp:  newSnmp(),
	}
	e.out.SetPrefix(noncePrefix)
	return e, nil
}

// Snmp exposes the statistics block for the signal handler and the CSV
// logger.
func (e *Engine) Snmp() *Snmp { return e.snmp }

// Peer returns the current peer address, nil before a listener has learned
// one. Only meaningful from the loop's own goroutine or after Run returns.
func (e *Engine) Peer() unix.Sockaddr { return e.peer }

// Stop makes Run return nil at the next poll wakeup. Safe to call from any
// goroutine, more than once.
func (e *Engine) Stop() {
	unix.Write(e.stopW, []byte{0})
}

// Close releases both tunnel fds and the stop pipe. Call after Run returns.
func (e *Engine) Close() {
	unix.Close(e.tapFD)
	unix.Close(e.udpFD)
	unix.Close(e.stopR)
	unix.Close(e.stopW)
}

// Run drives the tunnel until Stop is called or a fatal error occurs. A
// connector announces itself immediately with a keepalive so the listener
// learns the return path without waiting for traffic.
func (e *Engine) Run() error {
	if e.peer != nil {
		if err := e.sendKeepalive(); err != nil {
			return err
		}
	}

	fds := make([]unix.PollFd, 0, 3)
	for {
		fds = fds[:0]
		fds = append(fds,
			unix.PollFd{Fd: int32(e.udpFD), Events: unix.POLLIN},
			unix.PollFd{Fd: int32(e.stopR), Events: unix.POLLIN})
		// the TAP side is only serviced once we know where to send
		if e.peer != nil {
			fds = append(fds, unix.PollFd{Fd: int32(e.tapFD), Events: unix.POLLIN})
		}

		n, err := unix.Poll(fds, tickMillis)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return errors.Wrap(err, "poll")
		}
		if n == 0 {
			if e.peer != nil {
				if err := e.sendKeepalive(); err != nil {
					return err
				}
			}
			continue
		}
		if fds[1].Revents != 0 {
			return nil
		}
		if fds[0].Revents != 0 {
			if err := e.drainUDP(); err != nil {
				return err
			}
		}
		if len(fds) > 2 && fds[2].Revents != 0 {
			if err := e.drainTAP(); err != nil {
				return err
			}
		}
	}
}

// drainUDP consumes every immediately available datagram on the socket.
// Per-datagram faults (replay, forgery, malformed control payloads) are
// counted and dropped; only a failed TAP write is fatal, since that means
// losing an authenticated frame.
func (e *Engine) drainUDP() error {
	for {
		n, from, err := unix.Recvfrom(e.udpFD, e.cipher[:], 0)
		if err == unix.EINTR {
			continue
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return nil
		}
		if err != nil {
			// async socket errors (ICMP feedback etc.) end the drain
			if !e.quiet {
				log.Println("recvfrom:", err)
			}
			return nil
		}
		if n < NonceSize+Overhead {
			e.snmp.add(&e.snmp.FramesIgnored, 1)
			continue
		}

		var nonce Nonce
		copy(nonce[:], e.cipher[:NonceSize])
		if nonce.Compare(&e.in) <= 0 {
			e.snmp.add(&e.snmp.FramesReplayed, 1)
			continue
		}

		plain, ok := open(e.plain[:0], e.cipher[NonceSize:n], &nonce, e.key)
		if !ok {
			e.snmp.add(&e.snmp.FramesUnauth, 1)
			continue
		}

		// authenticated: advance the watermark, follow the sender
		e.in = nonce
		e.learnPeer(from)
		e.snmp.add(&e.snmp.FramesIn, 1)
		e.snmp.add(&e.snmp.BytesIn, uint64(n))
		e.snmp.raise(&e.snmp.BiggestRcvd, uint64(n))

		switch {
		case len(plain) >= minFrame:
			if _, err := unix.Write(e.tapFD, plain); err != nil {
				return errors.Wrap(err, "tap write")
			}
		case len(plain) == keepaliveSize && plain[0] == keepaliveTag:
			e.snmp.add(&e.snmp.KeepalivesIn, 1)
			e.snmp.raise(&e.snmp.BiggestSent, uint64(binary.BigEndian.Uint16(plain[1:])))
		default:
			// reserved control space, deliberately not an error
			e.snmp.add(&e.snmp.FramesIgnored, 1)
		}
	}
}

// drainTAP reads every immediately available frame and ships it to the
// peer. Only entered when the peer is known.
func (e *Engine) drainTAP() error {
	for {
		n, err := unix.Read(e.tapFD, e.plain[:maxFrame])
		if err == unix.EINTR {
			continue
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "tap read")
		}
		if n == 0 {
			return nil
		}
		if err := e.send(e.plain[:n]); err != nil {
			return err
		}
		e.snmp.add(&e.snmp.FramesOut, 1)
	}
}

// send encrypts payload under the next nonce and transmits it to the
// current peer. BiggestTried is raised even when the transmit fails: the
// gap between tried and sent is the whole point of the watermark pair.
func (e *Engine) send(payload []byte) error {
	e.out.Increment()
	dgram := append(e.cipher[:0], e.out[:]...)
	dgram = seal(dgram, payload, &e.out, e.key)
	e.snmp.raise(&e.snmp.BiggestTried, uint64(len(dgram)))

	err := unix.Sendto(e.udpFD, dgram, 0, e.peer)
	if err != nil {
		if transientSendErr(err) {
			e.snmp.add(&e.snmp.SendErrors, 1)
			if !e.quiet {
				log.Println("sendto:", err, "len:", len(dgram))
			}
			return nil
		}
		return errors.Wrap(err, "sendto")
	}
	e.snmp.add(&e.snmp.BytesOut, uint64(len(dgram)))
	return nil
}

// sendKeepalive reports the biggest datagram we have accepted so far. The
// connector's startup keepalive naturally reports 0.
func (e *Engine) sendKeepalive() error {
	var ka [keepaliveSize]byte
	ka[0] = keepaliveTag
	binary.BigEndian.PutUint16(ka[1:], uint16(e.snmp.Copy().BiggestRcvd))
	e.snmp.add(&e.snmp.KeepalivesOut, 1)
	return e.send(ka[:])
}

// learnPeer follows the source address of the latest authenticated
// datagram, which both binds a fresh listener and tracks a roaming peer.
func (e *Engine) learnPeer(from unix.Sockaddr) {
	if from == nil {
		return
	}
	if e.peer == nil || SockaddrString(e.peer) != SockaddrString(from) {
		if !e.quiet {
			log.Println("peer:", SockaddrString(from))
		}
		e.peer = from
	}
}

// transientSendErr reports whether a sendto failure is a per-packet drop
// rather than a reason to tear the tunnel down. EMSGSIZE is expected with
// don't-fragment set whenever a frame exceeds the current path MTU.
func transientSendErr(err error) bool {
	switch err {
	case unix.EMSGSIZE, unix.EAGAIN, unix.EINTR,
		unix.ECONNREFUSED, unix.EHOSTUNREACH, unix.ENETUNREACH,
		unix.ENETDOWN, unix.ENOBUFS, unix.EPERM:
		return true
	}
	return false
}
