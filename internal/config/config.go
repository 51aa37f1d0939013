package config

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "DAAS_"

// Config is the complete configuration of the operator and the SQL proxy.
type Config struct {
	Log          LogConfig          `yaml:"log" envPrefix:"LOG_"`
	Kubernetes   KubernetesConfig   `yaml:"kubernetes" envPrefix:"KUBE_"`
	SQLProxy     SQLProxyConfig     `yaml:"sqlProxy" envPrefix:"SQL_PROXY_"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator" envPrefix:"ORCHESTRATOR_"`
	Store        StoreConfig        `yaml:"store" envPrefix:"STORE_"`
	Events       EventsConfig       `yaml:"events" envPrefix:"EVENTS_"`
	Metrics      MetricsConfig      `yaml:"metrics" envPrefix:"METRICS_"`
	Timeouts     Timeouts           `yaml:"timeouts" envPrefix:"TIMEOUT_"`
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level       string `yaml:"level" env:"LEVEL"`
	Development bool   `yaml:"development" env:"DEVELOPMENT"`
}

// KubernetesConfig describes where tenant servers run and how they are built.
type KubernetesConfig struct {
	// Kubeconfig is a path to a kubeconfig file; empty means in-cluster.
	Kubeconfig    string `yaml:"kubeconfig" env:"CONFIG"`
	Namespace     string `yaml:"namespace" env:"NAMESPACE"`
	ClusterDomain string `yaml:"clusterDomain" env:"CLUSTER_DOMAIN"`
	Image         string `yaml:"image" env:"IMAGE"`
	IngressDomain string `yaml:"ingressDomain" env:"INGRESS_DOMAIN"`
	IngressClass  string `yaml:"ingressClass" env:"INGRESS_CLASS"`
}

// SQLProxyConfig configures the SQL execution proxy server.
type SQLProxyConfig struct {
	ListenAddress string `yaml:"listenAddress" env:"LISTEN_ADDRESS"`
	AppName       string `yaml:"appName" env:"APP_NAME"`
}

// OrchestratorConfig configures the operator process.
type OrchestratorConfig struct {
	ListenAddress string `yaml:"listenAddress" env:"LISTEN_ADDRESS"`
	// ProxyURL points at a remote SQL proxy. When empty the operator
	// executes management SQL in process.
	ProxyURL       string `yaml:"proxyURL" env:"PROXY_URL"`
	PasswordLength int    `yaml:"passwordLength" env:"PASSWORD_LENGTH"`
	// Watch enables repairing servers whose resources were deleted.
	Watch bool `yaml:"watch" env:"WATCH"`
}

// Store drivers.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver   string `yaml:"driver" env:"DRIVER"`
	DSN      string `yaml:"dsn" env:"DSN"`
	MaxConns int32  `yaml:"maxConns" env:"MAX_CONNS"`
}

// Event drivers.
const (
	EventsLog   = "log"
	EventsRedis = "redis"
)

// EventsConfig selects where status changes are published. Events are
// always logged; the redis driver also appends them to a stream.
type EventsConfig struct {
	Driver        string `yaml:"driver" env:"DRIVER"`
	RedisAddress  string `yaml:"redisAddress" env:"REDIS_ADDRESS"`
	RedisPassword string `yaml:"redisPassword" env:"REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redisDB" env:"REDIS_DB"`
	Stream        string `yaml:"stream" env:"STREAM"`
	MaxLen        int64  `yaml:"maxLen" env:"MAX_LEN"`
}

// MetricsConfig configures the Prometheus endpoint. An empty address
// disables it.
type MetricsConfig struct {
	Address string `yaml:"address" env:"ADDRESS"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Kubernetes: KubernetesConfig{
			Namespace:     "daas-tenants",
			ClusterDomain: "cluster.local",
			Image:         "mcr.microsoft.com/mssql/server:2022-latest",
		},
		SQLProxy: SQLProxyConfig{
			ListenAddress: ":8080",
			AppName:       "daas-sql-proxy",
		},
		Orchestrator: OrchestratorConfig{
			ListenAddress:  ":8081",
			PasswordLength: 24,
			Watch:          true,
		},
		Store: StoreConfig{
			Driver:   StoreMemory,
			MaxConns: 10,
		},
		Events: EventsConfig{
			Driver: EventsLog,
			Stream: "daas:status",
			MaxLen: 10000,
		},
		Metrics:  MetricsConfig{Address: ":9090"},
		Timeouts: DefaultTimeouts(),
	}
}
