package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseJSONConfigSuccess(t *testing.T) {
	path := writeTempConfig(t, `{"listen":true,"iface":"tap3","addr":"192.0.2.7","port":4500,"key":"/etc/tappet/our.sec","peerkey":"/etc/tappet/peer.pub","noncefile":"/var/lib/tappet/nonce","dscp":46,"quiet":true}`)

	var cfg Config
	if err := parseJSONConfig(&cfg, path); err != nil {
		t.Fatalf("parseJSONConfig returned error: %v", err)
	}

	if !cfg.Listen || cfg.Iface != "tap3" || cfg.Addr != "192.0.2.7" || cfg.Port != 4500 {
		t.Fatalf("unexpected endpoint fields: %+v", cfg)
	}

	if cfg.Key != "/etc/tappet/our.sec" || cfg.PeerKey != "/etc/tappet/peer.pub" || cfg.NonceFile != "/var/lib/tappet/nonce" {
		t.Fatalf("unexpected path fields: %+v", cfg)
	}

	if cfg.DSCP != 46 || !cfg.Quiet {
		t.Fatalf("unexpected field values: %+v", cfg)
	}
}

func TestParseJSONConfigMissingFile(t *testing.T) {
	var cfg Config
	missing := filepath.Join(t.TempDir(), "missing.json")
	if err := parseJSONConfig(&cfg, missing); err == nil {
		t.Fatalf("parseJSONConfig expected error for missing file")
	}
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}
