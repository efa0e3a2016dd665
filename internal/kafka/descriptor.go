package kafka

// SecurityProtocol selects how the client authenticates and encrypts
// its connection to a cluster.
type SecurityProtocol string

const (
	ProtocolPlaintext     SecurityProtocol = "plaintext"
	ProtocolSSL           SecurityProtocol = "ssl"
	ProtocolSASLPlaintext SecurityProtocol = "sasl_plaintext"
	ProtocolSASLSSL       SecurityProtocol = "sasl_ssl"
)

// SecurityConfig carries the protocol-specific credentials for a cluster.
// Only the fields relevant to the chosen protocol are consulted.
type SecurityConfig struct {
	Protocol      SecurityProtocol
	SASLMechanism string // PLAIN, SCRAM-SHA-256, SCRAM-SHA-512
	Username      string
	Password      string
	TLSCAFile     string
	TLSCertFile   string
	TLSKeyFile    string
}

// ClusterDescriptor describes one logical cluster. Descriptors are loaded
// by the configuration layer and never mutated afterwards.
type ClusterDescriptor struct {
	ID               string
	Name             string
	BootstrapServers []string
	Security         SecurityConfig
}

// DescriptorSource resolves cluster ids to descriptors. The registry only
// checks presence; it never modifies a descriptor.
type DescriptorSource interface {
	Lookup(clusterID string) (ClusterDescriptor, bool)
	All() []ClusterDescriptor
}
