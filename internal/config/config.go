package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Chat    ChatConfig    `mapstructure:"chat" yaml:"chat"`
	JWT     JWTConfig     `mapstructure:"jwt" yaml:"jwt"`
}

// StorageConfig selects and parameterizes the store backend.
type StorageConfig struct {
	// Backend is one of "memory", "sqlite", "redis".
	Backend   string `mapstructure:"backend" yaml:"backend"`
	Path      string `mapstructure:"path" yaml:"path"`
	RedisAddr string `mapstructure:"redis_addr" yaml:"redis_addr"`
}

// ChatConfig parameterizes the chat engine.
type ChatConfig struct {
	DefaultRoom string   `mapstructure:"default_room" yaml:"default_room"`
	Rooms       []string `mapstructure:"rooms" yaml:"rooms"`
	// EnforceAllowedRooms turns on the advisory allowed-room restriction
	// for authenticated joins.
	EnforceAllowedRooms bool `mapstructure:"enforce_allowed_rooms" yaml:"enforce_allowed_rooms"`
}

// JWTConfig parameterizes identity token signing.
type JWTConfig struct {
	Secret string        `mapstructure:"secret" yaml:"secret"`
	Issuer string        `mapstructure:"issuer" yaml:"issuer"`
	TTL    time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		LogLevel:          "info",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		Storage: StorageConfig{
			Backend:   "memory",
			Path:      "roomline.db",
			RedisAddr: "localhost:6379",
		},
		Chat: ChatConfig{
			DefaultRoom: "Free Chat",
		},
		JWT: JWTConfig{
			Secret: "change-me",
			Issuer: "roomline",
			TTL:    24 * time.Hour,
		},
	}
}
