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
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"
)

// Snmp collects tunnel statistics. The engine is the only writer; the
// SIGUSR1 handler and the CSV logger read concurrently, hence the atomics.
//
// The three Biggest* entries are the MTU-probe watermarks: the largest
// datagram we handed to the socket, the largest the peer reports having
// received from us, and the largest we received ourselves. They only grow.
type Snmp struct {
	BytesIn        uint64 // raw datagram bytes accepted
	BytesOut       uint64 // raw datagram bytes sent
	FramesIn       uint64 // authenticated datagrams accepted
	FramesOut      uint64 // Ethernet frames forwarded from TAP
	FramesUnauth   uint64 // datagrams failing authentication
	FramesReplayed uint64 // datagrams rejected by the nonce watermark
	FramesIgnored  uint64 // runt datagrams and short plaintexts with no known interpretation
	KeepalivesIn   uint64 // keepalives received
	KeepalivesOut  uint64 // keepalives sent
	SendErrors     uint64 // transient transmit failures dropped
	BiggestTried   uint64
	BiggestSent    uint64
	BiggestRcvd    uint64
}

func newSnmp() *Snmp {
	return new(Snmp)
}

// Header returns the field names, in ToSlice order.
func (s *Snmp) Header() []string {
	return []string{
		"BytesIn",
		"BytesOut",
		"FramesIn",
		"FramesOut",
		"FramesUnauth",
		"FramesReplayed",
		"FramesIgnored",
		"KeepalivesIn",
		"KeepalivesOut",
		"SendErrors",
		"BiggestTried",
		"BiggestSent",
		"BiggestRcvd",
	}
}

// ToSlice returns the current values as strings, in Header order.
func (s *Snmp) ToSlice() []string {
	c := s.Copy()
	return []string{
		fmt.Sprint(c.BytesIn),
		fmt.Sprint(c.BytesOut),
		fmt.Sprint(c.FramesIn),
		fmt.Sprint(c.FramesOut),
		fmt.Sprint(c.FramesUnauth),
		fmt.Sprint(c.FramesReplayed),
		fmt.Sprint(c.FramesIgnored),
		fmt.Sprint(c.KeepalivesIn),
		fmt.Sprint(c.KeepalivesOut),
		fmt.Sprint(c.SendErrors),
		fmt.Sprint(c.BiggestTried),
		fmt.Sprint(c.BiggestSent),
		fmt.Sprint(c.BiggestRcvd),
	}
}

// Copy makes a consistent-enough snapshot for reporting.
func (s *Snmp) Copy() *Snmp {
	d := newSnmp()
	d.BytesIn = atomic.LoadUint64(&s.BytesIn)
	d.BytesOut = atomic.LoadUint64(&s.BytesOut)
	d.FramesIn = atomic.LoadUint64(&s.FramesIn)
	d.FramesOut = atomic.LoadUint64(&s.FramesOut)
	d.FramesUnauth = atomic.LoadUint64(&s.FramesUnauth)
	d.FramesReplayed = atomic.LoadUint64(&s.FramesReplayed)
	d.FramesIgnored = atomic.LoadUint64(&s.FramesIgnored)
	d.KeepalivesIn = atomic.LoadUint64(&s.KeepalivesIn)
	d.KeepalivesOut = atomic.LoadUint64(&s.KeepalivesOut)
	d.SendErrors = atomic.LoadUint64(&s.SendErrors)
	d.BiggestTried = atomic.LoadUint64(&s.BiggestTried)
	d.BiggestSent = atomic.LoadUint64(&s.BiggestSent)
	d.BiggestRcvd = atomic.LoadUint64(&s.BiggestRcvd)
	return d
}

func (s *Snmp) add(field *uint64, delta uint64) {
	atomic.AddUint64(field, delta)
}

// raise lifts a watermark to v if v is larger. The engine is single
// threaded, so load-compare-store does not race with other writers.
func (s *Snmp) raise(field *uint64, v uint64) {
	if v > atomic.LoadUint64(field) {
		atomic.StoreUint64(field, v)
	}
}

// SnmpLogger periodically appends the counters to a CSV file. The filename
// part of path goes through time.Format, so "./stats-20060102.log" rolls
// daily.
func SnmpLogger(path string, interval int, snmp *Snmp) {
	if path == "" || interval == 0 {
		return
	}
	ticker := time.NewTicker(time.Duration(interval) * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		logdir, logfile := filepath.Split(path)
		f, err := os.OpenFile(logdir+time.Now().Format(logfile), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			log.Println(err)
			return
		}
		w := csv.NewWriter(f)
		// write header in empty file
		if stat, err := f.Stat(); err == nil && stat.Size() == 0 {
			if err := w.Write(append([]string{"Unix"}, snmp.Header()...)); err != nil {
				log.Println(err)
			}
		}
		if err := w.Write(append([]string{fmt.Sprint(time.Now().Unix())}, snmp.ToSlice()...)); err != nil {
			log.Println(err)
		}
		w.Flush()
		f.Close()
	}
}
