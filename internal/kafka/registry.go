package kafka

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl/plain"
	"github.com/twmb/franz-go/pkg/sasl/scram"
)

// Handle is a live administrative session against one cluster. A handle is
// created lazily on first use, shared by every request for the same cluster
// id, and closed only by eviction or shutdown.
type Handle struct {
	Client *kgo.Client
	Admin  *kadm.Client
}

func (h *Handle) close() {
	if h != nil && h.Client != nil {
		h.Client.Close()
	}
}

// entry is the map slot for one cluster id. The once guarantees a single
// construction attempt per slot even when multiple requests race on an
// uncached id; construction itself runs outside the registry lock.
type entry struct {
	once   sync.Once
	handle *Handle
	err    error
}

// Registry owns the cluster-id to handle cache. It is the only shared
// mutable state in the process and is safe for concurrent use.
type Registry struct {
	source  DescriptorSource
	timeout time.Duration

	mu      sync.Mutex
	entries map[string]*entry
}

// NewRegistry creates a registry backed by the given descriptor source.
// The timeout bounds connection probes issued by TestConnection.
func NewRegistry(source DescriptorSource, timeout time.Duration) *Registry {
	return &Registry{
		source:  source,
		timeout: timeout,
		entries: make(map[string]*entry),
	}
}

// GetOrCreate returns the cached handle for the cluster, constructing it on
// first use. Two concurrent calls for the same uncached id produce exactly
// one handle. A failed construction is not cached; the next call retries.
func (r *Registry) GetOrCreate(ctx context.Context, clusterID string) (*Handle, error) {
	desc, ok := r.source.Lookup(clusterID)
	if !ok {
		return nil, clusterNotFound(clusterID, "get_connection")
	}

	r.mu.Lock()
	e, ok := r.entries[clusterID]
	if !ok {
		e = &entry{}
		r.entries[clusterID] = e
	}
	r.mu.Unlock()

	e.once.Do(func() {
		e.handle, e.err = r.open(desc)
		if e.err != nil {
			r.mu.Lock()
			if r.entries[clusterID] == e {
				delete(r.entries, clusterID)
			}
			r.mu.Unlock()
		}
	})

	if e.err != nil {
		return nil, classify(clusterID, "get_connection", e.err)
	}
	return e.handle, nil
}

// Evict closes and removes the cached handle for a cluster. Evicting an
// unknown or uncached id is a no-op.
func (r *Registry) Evict(clusterID string) {
	r.mu.Lock()
	e, ok := r.entries[clusterID]
	if ok {
		delete(r.entries, clusterID)
	}
	r.mu.Unlock()

	if ok {
		e.handle.close()
		slog.Debug("evicted cluster connection", "cluster", clusterID)
	}
}

// EvictAll closes every cached handle. Called at process shutdown.
func (r *Registry) EvictAll() {
	r.mu.Lock()
	evicted := r.entries
	r.entries = make(map[string]*entry)
	r.mu.Unlock()

	for id, e := range evicted {
		e.handle.close()
		slog.Debug("evicted cluster connection", "cluster", id)
	}
}

// Descriptor resolves a cluster descriptor without touching the handle
// cache. The sampler uses it to build its own ephemeral client instead of
// borrowing the shared administrative handle.
func (r *Registry) Descriptor(clusterID string) (ClusterDescriptor, bool) {
	return r.source.Lookup(clusterID)
}

// Cached reports whether a live handle currently exists for the cluster.
func (r *Registry) Cached(clusterID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[clusterID]
	return ok
}

// TestConnection probes the cluster with a lightweight describe-cluster
// call. Failure is an expected operator-facing outcome, so it is reported
// as data rather than an error.
func (r *Registry) TestConnection(ctx context.Context, clusterID string) (bool, string) {
	handle, err := r.GetOrCreate(ctx, clusterID)
	if err != nil {
		return false, err.Error()
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := handle.Client.Ping(ctx); err != nil {
		// Drop the broken handle so the next attempt reconnects.
		r.Evict(clusterID)
		return false, classify(clusterID, "test_connection", err).Error()
	}

	return true, ""
}

// open constructs the administrative client for a descriptor. It performs
// no connection probe: franz-go dials lazily, and TestConnection exists for
// callers that want an eager check.
func (r *Registry) open(desc ClusterDescriptor) (*Handle, error) {
	opts, err := clientOpts(desc)
	if err != nil {
		return nil, err
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create client for cluster %q: %w", desc.ID, err)
	}

	slog.Info("opened cluster connection",
		"cluster", desc.ID,
		"bootstrap_servers", strings.Join(desc.BootstrapServers, ","),
		"protocol", desc.Security.Protocol,
	)

	return &Handle{Client: client, Admin: kadm.NewClient(client)}, nil
}

// clientOpts builds franz-go options from a descriptor's security settings.
// Plaintext passes the seed brokers only; SASL and SSL variants add the
// relevant mechanism and TLS material.
func clientOpts(desc ClusterDescriptor) ([]kgo.Opt, error) {
	seeds := make([]string, 0, len(desc.BootstrapServers))
	for _, seed := range desc.BootstrapServers {
		seed = strings.TrimSpace(seed)
		if seed != "" {
			seeds = append(seeds, seed)
		}
	}

	opts := []kgo.Opt{kgo.SeedBrokers(seeds...)}

	sec := desc.Security
	switch sec.Protocol {
	case "", ProtocolPlaintext:
	case ProtocolSSL:
		tlsConfig, err := buildTLS(sec)
		if err != nil {
			return nil, fmt.Errorf("configure TLS for cluster %q: %w", desc.ID, err)
		}
		opts = append(opts, kgo.DialTLSConfig(tlsConfig))
	case ProtocolSASLPlaintext:
		saslOpt, err := buildSASL(sec)
		if err != nil {
			return nil, fmt.Errorf("configure SASL for cluster %q: %w", desc.ID, err)
		}
		opts = append(opts, saslOpt)
	case ProtocolSASLSSL:
		saslOpt, err := buildSASL(sec)
		if err != nil {
			return nil, fmt.Errorf("configure SASL for cluster %q: %w", desc.ID, err)
		}
		tlsConfig, err := buildTLS(sec)
		if err != nil {
			return nil, fmt.Errorf("configure TLS for cluster %q: %w", desc.ID, err)
		}
		opts = append(opts, saslOpt, kgo.DialTLSConfig(tlsConfig))
	default:
		return nil, fmt.Errorf("unsupported security protocol %q", sec.Protocol)
	}

	return opts, nil
}

// buildSASL creates the SASL option for the configured mechanism.
func buildSASL(sec SecurityConfig) (kgo.Opt, error) {
	switch strings.ToUpper(sec.SASLMechanism) {
	case "PLAIN":
		return kgo.SASL(plain.Auth{
			User: sec.Username,
			Pass: sec.Password,
		}.AsMechanism()), nil

	case "SCRAM-SHA-256":
		mechanism := scram.Auth{
			User: sec.Username,
			Pass: sec.Password,
		}.AsSha256Mechanism()
		return kgo.SASL(mechanism), nil

	case "SCRAM-SHA-512":
		mechanism := scram.Auth{
			User: sec.Username,
			Pass: sec.Password,
		}.AsSha512Mechanism()
		return kgo.SASL(mechanism), nil

	default:
		return nil, fmt.Errorf("unsupported SASL mechanism: %s", sec.SASLMechanism)
	}
}

// buildTLS creates TLS configuration from the provided cert files.
func buildTLS(sec SecurityConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}

	if sec.TLSCertFile != "" && sec.TLSKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(sec.TLSCertFile, sec.TLSKeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	if sec.TLSCAFile != "" {
		caCert, err := os.ReadFile(sec.TLSCAFile)
		if err != nil {
			return nil, fmt.Errorf("read CA certificate: %w", err)
		}

		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("parse CA certificate")
		}
		tlsConfig.RootCAs = caCertPool
	}

	return tlsConfig, nil
}
