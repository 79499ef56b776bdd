package core

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config contains all of the configuration options available to anvil's
// server components.
type Config struct {
	// Hostname or IP address on which the server will listen for connections.
	Hostname string `mapstructure:"hostname"`
	// Port on which the server will listen for game connections.
	Port int `mapstructure:"port"`
	// Maximum number of concurrent connections the server will allow.
	MaxConnections int `mapstructure:"max_connections"`

	Logging struct {
		// Minimum level of a log required to be written. Options: debug, info, warn, error
		LogLevel string `mapstructure:"log_level"`
		// Full path to file to which logs will be written. Blank will write to stdout.
		LogFilePath string `mapstructure:"log_file_path"`
	} `mapstructure:"logging"`

	Protocol struct {
		// Largest payload a client may declare in a packet's length prefix.
		MaxPacketSize int `mapstructure:"max_packet_size"`
		// Bytes reserved per connection for decoding one inbound packet. Holds
		// the payload plus every field copied out of it, so it must be at
		// least twice max_packet_size.
		ScratchArenaSize int `mapstructure:"scratch_arena_size"`
		// Bytes reserved per connection for packets waiting to be sent.
		OutboundArenaSize int `mapstructure:"outbound_arena_size"`
	} `mapstructure:"protocol"`

	Status struct {
		// Message of the day shown in the client's server list.
		MOTD       string `mapstructure:"motd"`
		MaxPlayers int    `mapstructure:"max_players"`
		// Version name and protocol number reported in the server list.
		VersionName     string `mapstructure:"version_name"`
		ProtocolVersion int32  `mapstructure:"protocol_version"`
	} `mapstructure:"status"`

	Session struct {
		// How long a login session is remembered after it was last touched.
		TTL time.Duration `mapstructure:"ttl"`
	} `mapstructure:"session"`

	Database struct {
		// Either "sqlite" or "postgres". Blank disables persistence.
		Engine string `mapstructure:"engine"`
		// Name of the sqlite file, relative to the config directory.
		Filename string `mapstructure:"filename"`
		// Hostname of the Postgres database instance.
		Host string `mapstructure:"host"`
		// Port on db_host on which the Postgres instance is accepting connections.
		Port int `mapstructure:"port"`
		// Name of the database in Postgres for anvil.
		Name string `mapstructure:"name"`
		// Username and password of a user with full RW privileges to ${db_name}.
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
		// Set to verify-full if the Postgres instance supports SSL.
		SSLMode string `mapstructure:"sslmode"`
	} `mapstructure:"database"`

	Debugging struct {
		// Enable the metrics and pprof endpoints.
		Enabled bool `mapstructure:"enabled"`
		// Port on which the debug HTTP server will listen.
		HTTPPort int `mapstructure:"http_port"`
		// Dump every packet to the log.
		PacketLoggingEnabled bool `mapstructure:"packet_logging_enabled"`
		// Enable database-level query logging.
		DatabaseLoggingEnabled bool `mapstructure:"database_logging_enabled"`
	} `mapstructure:"debugging"`

	configDir string
}

const envVarPrefix = "ANVIL"

var defaults = map[string]interface{}{
	"hostname":                           "0.0.0.0",
	"port":                               25565,
	"max_connections":                    100,
	"logging.log_level":                  "info",
	"logging.log_file_path":              "",
	"protocol.max_packet_size":           1<<21 - 1,
	"protocol.scratch_arena_size":        4 << 20,
	"protocol.outbound_arena_size":       1 << 20,
	"status.motd":                        "An anvil server",
	"status.max_players":                 20,
	"status.version_name":                "1.21",
	"status.protocol_version":            767,
	"session.ttl":                        "10m",
	"database.engine":                    "",
	"database.filename":                  "anvil.db",
	"database.host":                      "localhost",
	"database.port":                      5432,
	"database.name":                      "anvil",
	"database.username":                  "",
	"database.password":                  "",
	"database.sslmode":                   "disable",
	"debugging.enabled":                  false,
	"debugging.http_port":                8081,
	"debugging.packet_logging_enabled":   false,
	"debugging.database_logging_enabled": false,
}

// LoadConfig reads config.yaml from configPath. Every option has a default, so
// a missing file is not an error. Any option can be overridden through an
// environment variable.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(configPath)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	v.SetEnvPrefix(envVarPrefix)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// This allows us to set nested yaml config options through environment
	// variables. For example, database.host can be set using: <envVarPrefix>_DATABASE_HOST
	for _, k := range v.AllKeys() {
		envVar := strings.ReplaceAll(strings.ToUpper(k), ".", "_")
		if err := v.BindEnv(k, envVarPrefix+"_"+envVar); err != nil {
			return nil, fmt.Errorf("error binding %s to %s: %w", k, envVarPrefix+"_"+envVar, err)
		}
	}

	config := &Config{configDir: configPath}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config object: %w", err)
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) validate() error {
	switch {
	case c.Protocol.MaxPacketSize <= 0:
		return errors.New("protocol.max_packet_size must be positive")
	case c.Protocol.ScratchArenaSize < 2*c.Protocol.MaxPacketSize:
		// The payload and the fields copied out of it share the scratch arena.
		return errors.New("protocol.scratch_arena_size must be at least twice protocol.max_packet_size")
	case c.Protocol.OutboundArenaSize <= 0:
		return errors.New("protocol.outbound_arena_size must be positive")
	}
	switch c.Database.Engine {
	case "", "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database engine %q", c.Database.Engine)
	}
	return nil
}

// ListenAddress returns the address the game server listens on.
func (c *Config) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Hostname, c.Port)
}

// DebugAddress returns the address of the debug HTTP server.
func (c *Config) DebugAddress() string {
	return fmt.Sprintf("localhost:%d", c.Debugging.HTTPPort)
}

const databaseURITemplate = "host=%s port=%d dbname=%s user=%s password=%s sslmode=%s"

// DatabaseURL returns a database URL generated from the provided config values.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		databaseURITemplate,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.Username,
		c.Database.Password,
		c.Database.SSLMode,
	)
}

// QualifiedPath returns the path to a file in the config directory, unless
// name is already absolute.
func (c *Config) QualifiedPath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.configDir, name)
}
