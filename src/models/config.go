package models

// MConfig Structure
type MConfig struct {
	Name      string           `yaml:"name"`
	Host      string           `yaml:"host"`
	Port      int              `yaml:"port"`
	LogLevel  string           `yaml:"log_level"`
	Storage   MStorageConfig   `yaml:"storage"`
	Network   MNetworkConfig   `yaml:"network"`
	Provider  MProviderConfig  `yaml:"provider"`
	RateLimit MRateLimitConfig `yaml:"rate_limit"`
	Cache     MCacheConfig     `yaml:"cache"`
	Poller    MPollerConfig    `yaml:"poller"`
	Stream    MStreamConfig    `yaml:"stream"`
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type"`
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
	SeedDevData        bool   `yaml:"seed_dev_data"`
}

type MNetworkConfig struct {
	RequestTimeout     int    `yaml:"timeout"`
	MaxRetries         int    `yaml:"retries"`
	ConcurrentRequests int    `yaml:"concurrent_requests"`
	UserAgent          string `yaml:"user_agent"`
}

type MProviderConfig struct {
	Name      string `yaml:"name"`
	BaseURL   string `yaml:"base_url"`
	BatchSize int    `yaml:"batch_size"`
}

type MRateLimitConfig struct {
	CleanupIntervalSeconds int `yaml:"cleanup_interval_seconds"`
	RetentionMinutes       int `yaml:"retention_minutes"`
}

type MCacheConfig struct {
	TTLMs int `yaml:"ttl_ms"`
}

type MPollerConfig struct {
	DelayMs int `yaml:"delay_ms"`
}

type MStreamConfig struct {
	KeepaliveSeconds int      `yaml:"keepalive_seconds"`
	DefaultSymbols   []string `yaml:"default_symbols"`
	DefaultFiat      string   `yaml:"default_fiat"`
}
