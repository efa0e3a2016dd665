package kafka

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// stubSource is an in-memory descriptor source shared by the package tests.
type stubSource map[string]ClusterDescriptor

func (s stubSource) Lookup(id string) (ClusterDescriptor, bool) {
	desc, ok := s[id]
	return desc, ok
}

func (s stubSource) All() []ClusterDescriptor {
	out := make([]ClusterDescriptor, 0, len(s))
	for _, desc := range s {
		out = append(out, desc)
	}
	return out
}

func testSource() stubSource {
	return stubSource{
		"local": {ID: "local", Name: "Local", BootstrapServers: []string{"localhost:9092"}},
		"stage": {ID: "stage", Name: "Staging", BootstrapServers: []string{"stage-1:9092", "stage-2:9092"}},
	}
}

func TestGetOrCreateUnknownCluster(t *testing.T) {
	r := NewRegistry(testSource(), time.Second)
	defer r.EvictAll()

	_, err := r.GetOrCreate(context.Background(), "missing")
	if !IsKind(err, KindClusterNotFound) {
		t.Fatalf("expected ClusterNotFound, got %v", err)
	}
}

func TestGetOrCreateReturnsSameHandle(t *testing.T) {
	r := NewRegistry(testSource(), time.Second)
	defer r.EvictAll()

	first, err := r.GetOrCreate(context.Background(), "local")
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	second, err := r.GetOrCreate(context.Background(), "local")
	if err != nil {
		t.Fatalf("second call: %v", err)
	}

	if first != second {
		t.Fatal("sequential calls returned distinct handles for the same cluster")
	}
}

func TestGetOrCreateDistinctClusters(t *testing.T) {
	r := NewRegistry(testSource(), time.Second)
	defer r.EvictAll()

	local, err := r.GetOrCreate(context.Background(), "local")
	if err != nil {
		t.Fatalf("local: %v", err)
	}
	stage, err := r.GetOrCreate(context.Background(), "stage")
	if err != nil {
		t.Fatalf("stage: %v", err)
	}

	if local == stage {
		t.Fatal("different clusters share a handle")
	}
}

func TestGetOrCreateConcurrent(t *testing.T) {
	r := NewRegistry(testSource(), time.Second)
	defer r.EvictAll()

	const goroutines = 16
	handles := make([]*Handle, goroutines)

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(i int) {
			defer wg.Done()
			handle, err := r.GetOrCreate(context.Background(), "local")
			if err != nil {
				t.Errorf("goroutine %d: %v", i, err)
				return
			}
			handles[i] = handle
		}(i)
	}
	wg.Wait()

	for i := 1; i < goroutines; i++ {
		if handles[i] != handles[0] {
			t.Fatalf("goroutine %d saw a different handle", i)
		}
	}
}

func TestEvict(t *testing.T) {
	r := NewRegistry(testSource(), time.Second)
	defer r.EvictAll()

	first, err := r.GetOrCreate(context.Background(), "local")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !r.Cached("local") {
		t.Fatal("handle not cached after create")
	}

	r.Evict("local")
	if r.Cached("local") {
		t.Fatal("handle still cached after eviction")
	}

	// Evicting again, and evicting an unknown id, are no-ops.
	r.Evict("local")
	r.Evict("never-existed")

	second, err := r.GetOrCreate(context.Background(), "local")
	if err != nil {
		t.Fatalf("recreate: %v", err)
	}
	if first == second {
		t.Fatal("eviction did not discard the old handle")
	}
}

func TestEvictAll(t *testing.T) {
	r := NewRegistry(testSource(), time.Second)

	if _, err := r.GetOrCreate(context.Background(), "local"); err != nil {
		t.Fatalf("local: %v", err)
	}
	if _, err := r.GetOrCreate(context.Background(), "stage"); err != nil {
		t.Fatalf("stage: %v", err)
	}

	r.EvictAll()

	if r.Cached("local") || r.Cached("stage") {
		t.Fatal("handles still cached after EvictAll")
	}
}

func TestGetOrCreateBadSecurityNotCached(t *testing.T) {
	source := stubSource{
		"broken": {
			ID:               "broken",
			BootstrapServers: []string{"localhost:9092"},
			Security:         SecurityConfig{Protocol: "kerberos"},
		},
	}
	r := NewRegistry(source, time.Second)
	defer r.EvictAll()

	if _, err := r.GetOrCreate(context.Background(), "broken"); err == nil {
		t.Fatal("expected error for unsupported protocol")
	}
	if r.Cached("broken") {
		t.Fatal("failed construction left a cached entry")
	}
}

func writeTestCert(t *testing.T, dir, name string) (string, string, []byte) {
	t.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	template := x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "kafkalens-test"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	derBytes, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: derBytes})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(privateKey)})

	certPath := filepath.Join(dir, name+".crt")
	keyPath := filepath.Join(dir, name+".key")

	if err := os.WriteFile(certPath, certPEM, 0o600); err != nil {
		t.Fatalf("write cert: %v", err)
	}
	if err := os.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}

	return certPath, keyPath, certPEM
}

func TestBuildSASL(t *testing.T) {
	cases := []struct {
		name    string
		sec     SecurityConfig
		wantErr bool
	}{
		{
			name: "plain",
			sec:  SecurityConfig{SASLMechanism: "plain", Username: "user", Password: "pass"},
		},
		{
			name: "scram-sha-256",
			sec:  SecurityConfig{SASLMechanism: "SCRAM-SHA-256", Username: "user", Password: "pass"},
		},
		{
			name: "scram-sha-512",
			sec:  SecurityConfig{SASLMechanism: "SCRAM-SHA-512", Username: "user", Password: "pass"},
		},
		{
			name:    "unsupported",
			sec:     SecurityConfig{SASLMechanism: "GSSAPI"},
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opt, err := buildSASL(tc.sec)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				if !strings.Contains(err.Error(), "unsupported SASL mechanism") {
					t.Fatalf("error = %q, want 'unsupported SASL mechanism'", err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if opt == nil {
				t.Fatalf("expected non-nil option")
			}
		})
	}
}

func TestBuildTLSFullChain(t *testing.T) {
	dir := t.TempDir()
	certPath, keyPath, certPEM := writeTestCert(t, dir, "full")

	caPath := filepath.Join(dir, "ca.pem")
	if err := os.WriteFile(caPath, certPEM, 0o600); err != nil {
		t.Fatalf("write ca: %v", err)
	}

	sec := SecurityConfig{
		TLSCertFile: certPath,
		TLSKeyFile:  keyPath,
		TLSCAFile:   caPath,
	}

	tlsCfg, err := buildTLS(sec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tlsCfg.Certificates) != 1 {
		t.Fatalf("expected 1 client certificate, got %d", len(tlsCfg.Certificates))
	}
	if tlsCfg.RootCAs == nil {
		t.Fatalf("expected root CAs to be set")
	}
	if tlsCfg.MinVersion != tls.VersionTLS12 {
		t.Fatalf("expected min version TLS12")
	}
}

func TestBuildTLSErrors(t *testing.T) {
	dir := t.TempDir()

	badPEM := filepath.Join(dir, "bad.pem")
	if err := os.WriteFile(badPEM, []byte("not a pem"), 0o600); err != nil {
		t.Fatalf("write bad pem: %v", err)
	}

	cases := []struct {
		name string
		sec  SecurityConfig
	}{
		{name: "missing ca file", sec: SecurityConfig{TLSCAFile: filepath.Join(dir, "missing.pem")}},
		{name: "invalid ca content", sec: SecurityConfig{TLSCAFile: badPEM}},
		{name: "missing cert pair", sec: SecurityConfig{TLSCertFile: badPEM, TLSKeyFile: badPEM}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := buildTLS(tc.sec); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestClientOpts(t *testing.T) {
	cases := []struct {
		name    string
		desc    ClusterDescriptor
		wantErr bool
	}{
		{
			name: "plaintext default",
			desc: ClusterDescriptor{ID: "a", BootstrapServers: []string{"localhost:9092"}},
		},
		{
			name: "sasl plaintext",
			desc: ClusterDescriptor{
				ID:               "b",
				BootstrapServers: []string{"localhost:9092"},
				Security: SecurityConfig{
					Protocol:      ProtocolSASLPlaintext,
					SASLMechanism: "PLAIN",
					Username:      "u",
					Password:      "p",
				},
			},
		},
		{
			name: "sasl without mechanism",
			desc: ClusterDescriptor{
				ID:               "c",
				BootstrapServers: []string{"localhost:9092"},
				Security:         SecurityConfig{Protocol: ProtocolSASLPlaintext},
			},
			wantErr: true,
		},
		{
			name: "unknown protocol",
			desc: ClusterDescriptor{
				ID:               "d",
				BootstrapServers: []string{"localhost:9092"},
				Security:         SecurityConfig{Protocol: "kerberos"},
			},
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opts, err := clientOpts(tc.desc)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(opts) == 0 {
				t.Fatalf("expected options")
			}
		})
	}
}
