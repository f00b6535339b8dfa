package tls

import (
	"crypto/x509"
	"encoding/pem"
	"net"
	"os"
	"path/filepath"
	"testing"
)

func TestSelfSignedCoversHosts(t *testing.T) {
	cfg, err := SelfSigned("fbvnc.local", "10.9.8.7")
	if err != nil {
		t.Fatalf("SelfSigned: %v", err)
	}
	if len(cfg.Certificates) != 1 {
		t.Fatalf("got %d certificates", len(cfg.Certificates))
	}
	cert, err := x509.ParseCertificate(cfg.Certificates[0].Certificate[0])
	if err != nil {
		t.Fatalf("parse certificate: %v", err)
	}
	for _, name := range []string{"localhost", "fbvnc.local"} {
		if err := cert.VerifyHostname(name); err != nil {
			t.Errorf("VerifyHostname(%s): %v", name, err)
		}
	}
	found := false
	for _, ip := range cert.IPAddresses {
		if ip.Equal(net.ParseIP("10.9.8.7")) {
			found = true
		}
	}
	if !found {
		t.Errorf("extra IP missing from %v", cert.IPAddresses)
	}
}

func TestFromFiles(t *testing.T) {
	cfg, err := SelfSigned()
	if err != nil {
		t.Fatalf("SelfSigned: %v", err)
	}
	dir := t.TempDir()
	certFile := filepath.Join(dir, "cert.pem")
	keyFile := filepath.Join(dir, "key.pem")

	c := cfg.Certificates[0]
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: c.Certificate[0]})
	keyDER, err := x509.MarshalPKCS8PrivateKey(c.PrivateKey)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})
	if err := os.WriteFile(certFile, certPEM, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(keyFile, keyPEM, 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := FromFiles(certFile, keyFile); err != nil {
		t.Fatalf("FromFiles: %v", err)
	}
	if _, err := FromFiles(filepath.Join(dir, "missing.pem"), keyFile); err == nil {
		t.Fatalf("FromFiles accepted a missing certificate")
	}
}

func TestAddrHost(t *testing.T) {
	for addr, want := range map[string]string{
		":8443":             "",
		"0.0.0.0:8443":      "",
		"[::]:8443":         "",
		"fbvnc.local:8443":  "fbvnc.local",
		"192.168.1.20:8443": "192.168.1.20",
		"[fe80::1]:8443":    "fe80::1",
		"no-port":           "",
	} {
		if got := AddrHost(addr); got != want {
			t.Errorf("AddrHost(%q) = %q, want %q", addr, got, want)
		}
	}
}
