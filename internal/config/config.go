package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all agent configuration loaded from environment variables.
type Config struct {
	Server  ServerConfig
	Agent   AgentConfig
	Backend BackendConfig
	Store   StoreConfig
	Cache   CacheConfig
	Probe   ProbeConfig
	Prune   PruneConfig
	Worker  WorkerConfig
}

// ServerConfig holds local HTTP server settings. The server only binds
// loopback by default: it serves the on-device UI, nothing else.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"127.0.0.1"`
	Port            int           `envconfig:"SERVER_PORT" default:"8750"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// AgentConfig holds agent-level settings.
type AgentConfig struct {
	Name        string `envconfig:"AGENT_NAME" default:"parcelhub-sync-agent"`
	Environment string `envconfig:"AGENT_ENV" default:"development"`
	Version     string `envconfig:"AGENT_VERSION" default:"1.0.0"`
	Key         string `envconfig:"AGENT_KEY" default:""` // local API key for the UI
	CompanyName string `envconfig:"COMPANY_NAME" default:"ParcelHub"`
	OfficeName  string `envconfig:"OFFICE_NAME" default:""`
}

// BackendConfig holds remote backend settings.
type BackendConfig struct {
	BaseURL          string        `envconfig:"BACKEND_BASE_URL" default:""`
	TokenURL         string        `envconfig:"BACKEND_TOKEN_URL" default:""`
	DeviceKey        string        `envconfig:"BACKEND_DEVICE_KEY" default:""`
	StaticToken      string        `envconfig:"BACKEND_STATIC_TOKEN" default:""`
	RequestTimeout   time.Duration `envconfig:"BACKEND_REQUEST_TIMEOUT" default:"15s"`
	MaxAttempts      int           `envconfig:"BACKEND_MAX_ATTEMPTS" default:"5"`
	ShipmentEndpoint string        `envconfig:"BACKEND_SHIPMENT_ENDPOINT" default:"/api/v1/shipments"`
}

// ReferenceURL returns the backend URL for one reference-data type.
func (b *BackendConfig) ReferenceURL(typ string) string {
	return fmt.Sprintf("%s/api/v1/reference/%s", b.BaseURL, typ)
}

// StoreConfig holds persistent store settings.
type StoreConfig struct {
	Driver string `envconfig:"STORE_DRIVER" default:"sqlite"` // sqlite or mysql
	Path   string `envconfig:"STORE_PATH" default:"./data/agent.db"`
	// MySQL settings (depot kiosk deployments)
	Host     string `envconfig:"STORE_DB_HOST" default:"localhost"`
	Port     int    `envconfig:"STORE_DB_PORT" default:"3306"`
	Name     string `envconfig:"STORE_DB_NAME" default:"parcelhub_agent"`
	User     string `envconfig:"STORE_DB_USER" default:"root"`
	Password string `envconfig:"STORE_DB_PASS" default:""`
}

// DSN returns the MySQL data source name.
func (s *StoreConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		s.User, s.Password, s.Host, s.Port, s.Name)
}

// CacheConfig holds request-cache settings.
type CacheConfig struct {
	Type       string        `envconfig:"CACHE_TYPE" default:"memory"` // memory or redis
	TTL        time.Duration `envconfig:"CACHE_TTL" default:"24h"`
	RequestTTL time.Duration `envconfig:"CACHE_REQUEST_TTL" default:"30s"`

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// ProbeConfig holds connectivity probe settings.
type ProbeConfig struct {
	URL      string        `envconfig:"PROBE_URL" default:""`
	Interval time.Duration `envconfig:"PROBE_INTERVAL" default:"15s"`
	Timeout  time.Duration `envconfig:"PROBE_TIMEOUT" default:"5s"`
}

// PruneConfig holds offline-entity retention settings.
type PruneConfig struct {
	Retention time.Duration `envconfig:"PRUNE_RETENTION" default:"168h"`
	Interval  time.Duration `envconfig:"PRUNE_INTERVAL" default:"1h"`
}

// WorkerConfig holds background worker settings.
type WorkerConfig struct {
	SyncInterval time.Duration `envconfig:"WORKER_SYNC_INTERVAL" default:"5m"`
	PrewarmURLs  []string      `envconfig:"WORKER_PREWARM_URLS" default:""`
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// IsDevelopment returns true if running in development mode.
func (a *AgentConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
