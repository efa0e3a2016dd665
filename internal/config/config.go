package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/baekenough/kafka-lens-sub000/internal/kafka"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is the config file name the serve command looks for when
// no explicit path is given.
const DefaultFileName = "kafkalens.yaml"

const (
	defaultListen       = ":8080"
	defaultAdminTimeout = 60 * time.Second
	defaultPollTimeout  = 5 * time.Second
)

// Duration parses "60s"-style values from YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Value returns the underlying time.Duration.
func (d Duration) Value() time.Duration { return time.Duration(d) }

// Config is the full static configuration: the serving surface plus the
// cluster descriptors. Descriptors are immutable after load.
type Config struct {
	Listen       string          `yaml:"listen"`
	AdminTimeout Duration        `yaml:"admin_timeout"`
	PollTimeout  Duration        `yaml:"poll_timeout"`
	Clusters     []ClusterConfig `yaml:"clusters"`

	byID map[string]kafka.ClusterDescriptor
}

// ClusterConfig is one cluster entry in the config file.
type ClusterConfig struct {
	ID               string         `yaml:"id"`
	Name             string         `yaml:"name"`
	BootstrapServers []string       `yaml:"bootstrap_servers"`
	Security         SecurityConfig `yaml:"security"`
}

// SecurityConfig mirrors kafka.SecurityConfig in file form.
type SecurityConfig struct {
	Protocol      string `yaml:"protocol"`
	SASLMechanism string `yaml:"sasl_mechanism"`
	Username      string `yaml:"username"`
	Password      string `yaml:"password"`
	TLSCAFile     string `yaml:"tls_ca_file"`
	TLSCertFile   string `yaml:"tls_cert_file"`
	TLSKeyFile    string `yaml:"tls_key_file"`
}

// Load reads and validates a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}

	if err := cfg.finish(); err != nil {
		return nil, fmt.Errorf("config %q: %w", path, err)
	}

	return cfg, nil
}

// finish applies defaults, validates every cluster entry, and builds the
// descriptor index.
func (c *Config) finish() error {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.AdminTimeout <= 0 {
		c.AdminTimeout = Duration(defaultAdminTimeout)
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = Duration(defaultPollTimeout)
	}

	if len(c.Clusters) == 0 {
		return errors.New("at least one cluster must be configured")
	}

	c.byID = make(map[string]kafka.ClusterDescriptor, len(c.Clusters))
	for i, cluster := range c.Clusters {
		if err := validateCluster(cluster); err != nil {
			return fmt.Errorf("cluster %d: %w", i, err)
		}
		if _, dup := c.byID[cluster.ID]; dup {
			return fmt.Errorf("duplicate cluster id %q", cluster.ID)
		}
		c.byID[cluster.ID] = cluster.descriptor()
	}

	return nil
}

func validateCluster(cluster ClusterConfig) error {
	if cluster.ID == "" {
		return errors.New("id is required")
	}
	if len(cluster.BootstrapServers) == 0 {
		return fmt.Errorf("cluster %q: bootstrap_servers is required", cluster.ID)
	}

	sec := cluster.Security
	switch kafka.SecurityProtocol(sec.Protocol) {
	case "", kafka.ProtocolPlaintext, kafka.ProtocolSSL:
	case kafka.ProtocolSASLPlaintext, kafka.ProtocolSASLSSL:
		if sec.SASLMechanism == "" {
			return fmt.Errorf("cluster %q: sasl_mechanism is required for protocol %q", cluster.ID, sec.Protocol)
		}
		if sec.Username == "" || sec.Password == "" {
			return fmt.Errorf("cluster %q: username and password are required for protocol %q", cluster.ID, sec.Protocol)
		}
	default:
		return fmt.Errorf("cluster %q: unknown security protocol %q", cluster.ID, sec.Protocol)
	}

	if (sec.TLSCertFile == "") != (sec.TLSKeyFile == "") {
		return fmt.Errorf("cluster %q: tls_cert_file and tls_key_file must be provided together", cluster.ID)
	}

	return nil
}

func (c ClusterConfig) descriptor() kafka.ClusterDescriptor {
	name := c.Name
	if name == "" {
		name = c.ID
	}

	protocol := kafka.SecurityProtocol(c.Security.Protocol)
	if protocol == "" {
		protocol = kafka.ProtocolPlaintext
	}

	return kafka.ClusterDescriptor{
		ID:               c.ID,
		Name:             name,
		BootstrapServers: append([]string(nil), c.BootstrapServers...),
		Security: kafka.SecurityConfig{
			Protocol:      protocol,
			SASLMechanism: c.Security.SASLMechanism,
			Username:      c.Security.Username,
			Password:      c.Security.Password,
			TLSCAFile:     c.Security.TLSCAFile,
			TLSCertFile:   c.Security.TLSCertFile,
			TLSKeyFile:    c.Security.TLSKeyFile,
		},
	}
}

// Lookup implements kafka.DescriptorSource.
func (c *Config) Lookup(clusterID string) (kafka.ClusterDescriptor, bool) {
	desc, ok := c.byID[clusterID]
	return desc, ok
}

// All implements kafka.DescriptorSource. Descriptors come back in
// configuration order.
func (c *Config) All() []kafka.ClusterDescriptor {
	out := make([]kafka.ClusterDescriptor, 0, len(c.Clusters))
	for _, cluster := range c.Clusters {
		out = append(out, c.byID[cluster.ID])
	}
	return out
}
