package gocql

import (
	"time"

	cqldriver "github.com/kulezi/cqldriver"
	"github.com/kulezi/cqldriver/transport"
)

type ClusterConfig struct {
	// addresses for the initial connections. It is recommended to use the value set in
	// the Cassandra config for broadcast_address or listen_address, an IP address not
	// a domain name. This is because events from Cassandra will use the configured IP
	// address, which is used to index connected hosts. If the domain name specified
	// resolves to more than 1 IP address then the driver may connect multiple times to
	// the same host, and will not mark the node being down or up from events.
	Hosts []string

	// CQL version. Not passed to the session: STARTUP always sends 3.0.0.
	CQLVersion string

	// Connection timeout (default: 10s)
	Timeout time.Duration

	// Initial connection timeout. Not passed to the session; it has no
	// effect.
	ConnectTimeout time.Duration

	// Port. Not passed to the session; it has no effect, and each entry
	// of Hosts is dialed as given.
	Port int

	// Initial keyspace. Optional.
	Keyspace string

	// Default consistency level.
	// Default: Quorum
	Consistency Consistency

	// Compression algorithm. Not passed to the session; it has no effect.
	Compressor Compressor

	// Default: nil
	Authenticator Authenticator

	// Default retry policy to use for queries.
	// Default: DefaultRetryPolicy
	RetryPolicy RetryPolicy

	// HostSelectionPolicy builds the policy used to pick a coordinator
	// for each request. Default: round robin.
	HostSelectionPolicy transport.PolicyFactory

	// The keepalive interval used to detect dead connections.
	// Default: 30s
	HeartbeatInterval time.Duration

	// SslOpts configures TLS use.
	SslOpts *SslOptions

	// Event registration switches. Not passed to the session; they have
	// no effect.
	Events struct {
		DisableNodeStatusEvents bool
		DisableTopologyEvents   bool
		DisableSchemaEvents     bool
	}

	// DisableShardAwarePort is accepted for source compatibility and is not
	// passed to the session: when a node reports more than one shard, the
	// pool always opens one shard-targeted connection per shard.
	DisableShardAwarePort bool

	// Logger for this ClusterConfig.
	// If not specified, defaults to the package-level Logger.
	Logger StdLogger
}

func NewCluster(hosts ...string) *ClusterConfig {
	return &ClusterConfig{
		Hosts:             hosts,
		Timeout:           10 * time.Second,
		Consistency:       Quorum,
		HeartbeatInterval: 30 * time.Second,
	}
}

func sessionConfigFromGocql(cfg *ClusterConfig) (cqldriver.SessionConfig, error) {
	scfg := cqldriver.DefaultSessionConfig(cfg.Keyspace, cfg.Hosts...)
	scfg.Consistency = cfg.Consistency
	if cfg.Timeout > 0 {
		scfg.Timeout = cfg.Timeout
	}
	if cfg.HeartbeatInterval > 0 {
		scfg.HeartbeatInterval = cfg.HeartbeatInterval
	}

	if auth, ok := cfg.Authenticator.(PasswordAuthenticator); ok {
		scfg.Authenticator = transport.PasswordAuthenticator{Username: auth.Username, Password: auth.Password}
	}

	if cfg.HostSelectionPolicy != nil {
		scfg.Policy = cfg.HostSelectionPolicy
	}

	if retryPolicy, ok := cfg.RetryPolicy.(transport.RetryPolicy); ok {
		scfg.RetryPolicy = retryPolicy
	}

	logger := cfg.Logger
	if logger == nil {
		logger = Logger
	}
	if logger != nil {
		scfg.Logger = logger
	}

	if cfg.SslOpts != nil {
		tlsConfig, err := setupTLSConfig(cfg.SslOpts)
		if err != nil {
			return cqldriver.SessionConfig{}, err
		}
		scfg.TLS = tlsConfig
	}

	return scfg, nil
}

func (cfg *ClusterConfig) CreateSession() (*Session, error) {
	return NewSession(*cfg)
}
