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

package main

import (
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
	"golang.org/x/sys/unix"

	"github.com/arnt/tappet"
)

// VERSION is injected by buildflags
var VERSION = "SELFBUILD"

func main() {
	if VERSION == "SELFBUILD" {
		// add more log flags for debugging
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	myApp := cli.NewApp()
	myApp.Name = "tappet"
	myApp.Usage = "encrypted ethernet-over-udp tunnel between two peers"
	myApp.Version = VERSION
	myApp.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "listen,l",
			Usage: "listener role: bind addr:port and learn the peer from its first authenticated datagram",
		},
		cli.StringFlag{
			Name:  "iface,i",
			Value: "tap0",
			Usage: "preconfigured TAP interface to bridge",
		},
		cli.StringFlag{
			Name:   "key,k",
			Value:  "",
			Usage:  "path to our secret key file (64 hex chars + newline)",
			EnvVar: "TAPPET_KEY",
		},
		cli.StringFlag{
			Name:   "peerkey",
			Value:  "",
			Usage:  "path to the peer's public key file",
			EnvVar: "TAPPET_PEER_KEY",
		},
		cli.StringFlag{
			Name:  "addr",
			Value: "",
			Usage: "peer IP (connector) or bind IP (listener); IPv4/IPv6 literal, not a hostname",
		},
		cli.IntFlag{
			Name:  "port",
			Value: 0,
			Usage: "UDP port (1..65534): peer port for a connector, bind port for a listener",
		},
		cli.StringFlag{
			Name:  "noncefile,n",
			Value: "",
			Usage: "path to the 4-byte nonce prefix file, bumped once per run",
		},
		cli.IntFlag{
			Name:  "dscp",
			Value: 0,
			Usage: "set DSCP(6bit)",
		},
		cli.StringFlag{
			Name:  "log",
			Value: "",
			Usage: "specify a log file to output, default goes to stderr",
		},
		cli.StringFlag{
			Name:  "snmplog",
			Value: "",
			Usage: "collect snmp to file, aware of timeformat in golang, like: ./snmp-20060102.log",
		},
		cli.IntFlag{
			Name:  "snmpperiod",
			Value: 60,
			Usage: "snmp collect period, in seconds",
		},
		cli.BoolFlag{
			Name:  "quiet",
			Usage: "to suppress peer/drop messages",
		},
		cli.BoolFlag{
			Name:  "pprof",
			Usage: "start profiling server on :6060",
		},
		cli.StringFlag{
			Name:  "genkey",
			Value: "",
			Usage: "generate a key pair as PATH.pub and PATH.sec, then exit",
		},
		cli.StringFlag{
			Name:  "c",
			Value: "", // when the value is not empty, the config path must exists
			Usage: "config from json file, which will override the command from shell",
		},
	}
	myApp.Action = func(c *cli.Context) error {
		if base := c.String("genkey"); base != "" {
			pub, sec, err := tappet.GenerateKeyPair(base)
			checkError(err)
			log.Println("written:", sec, pub)
			return nil
		}

		config := Config{}
		config.Listen = c.Bool("listen")
		config.Iface = c.String("iface")
		config.Key = c.String("key")
		config.PeerKey = c.String("peerkey")
		config.Addr = c.String("addr")
		config.Port = c.Int("port")
		config.NonceFile = c.String("noncefile")
		config.DSCP = c.Int("dscp")
		config.Log = c.String("log")
		config.SnmpLog = c.String("snmplog")
		config.SnmpPeriod = c.Int("snmpperiod")
		config.Quiet = c.Bool("quiet")
		config.Pprof = c.Bool("pprof")

		if c.String("c") != "" {
			err := parseJSONConfig(&config, c.String("c"))
			checkError(err)
		}

		// log redirect
		if config.Log != "" {
			f, err := os.OpenFile(config.Log, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
			checkError(err)
			defer f.Close()
			log.SetOutput(f)
		}

		// the tunnel moves raw frames for the whole machine; a key
		// compromise in a root process compromises far more
		if os.Geteuid() == 0 {
			color.Red("tappet must not run as the superuser")
			checkError(errors.New("refusing to run as root"))
		}

		log.Println("version:", VERSION)
		log.Println("listener:", config.Listen)
		log.Println("iface:", config.Iface)
		log.Println("key:", config.Key)
		log.Println("peerkey:", config.PeerKey)
		log.Println("addr:", config.Addr)
		log.Println("port:", config.Port)
		log.Println("noncefile:", config.NonceFile)
		log.Println("dscp:", config.DSCP)
		log.Println("snmplog:", config.SnmpLog)
		log.Println("snmpperiod:", config.SnmpPeriod)
		log.Println("quiet:", config.Quiet)
		log.Println("pprof:", config.Pprof)

		secret, err := tappet.LoadKey(config.Key)
		checkError(err)
		if stat, err := os.Stat(config.Key); err == nil && stat.Mode().Perm()&0077 != 0 {
			color.Red("WARNING: %s is readable by other users, chmod it to 0600", config.Key)
		}
		peerPublic, err := tappet.LoadKey(config.PeerKey)
		checkError(err)
		shared := tappet.Precompute(secret, peerPublic)

		prefix, err := tappet.BumpNoncePrefix(config.NonceFile)
		checkError(err)
		log.Println("nonce prefix:", prefix)

		addr, err := tappet.ResolveAddr(config.Addr, config.Port)
		checkError(err)
		udpFD, err := tappet.NewUDPSocket(addr, config.Listen, config.DSCP)
		checkError(err)
		tapFD, err := tappet.OpenTAP(config.Iface)
		checkError(err)

		var peer unix.Sockaddr
		if !config.Listen {
			peer = addr
		}
		engine, err := tappet.NewEngine(tapFD, udpFD, shared, prefix, peer, config.Quiet)
		checkError(err)

		watchSignals(engine)
		go tappet.SnmpLogger(config.SnmpLog, config.SnmpPeriod, engine.Snmp())
		if config.Pprof {
			go http.ListenAndServe(":6060", nil)
		}

		log.Println("tunnel up:", config.Iface, "<->", tappet.SockaddrString(engine.Peer()))
		err = engine.Run()
		engine.Close()
		checkError(err)
		return nil
	}
	myApp.Run(os.Args)
}

func checkError(err error) {
	if err != nil {
		log.Printf("%+v\n", err)
		os.Exit(-1)
	}
}
