package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the service configuration
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	ServiceBus ServiceBusConfig
	NewRelic   NewRelicConfig
	Auth       AuthConfig
	Broadcast  BroadcastConfig
	Logging    LoggingConfig
}

// ServerConfig holds the HTTP server configuration
type ServerConfig struct {
	Port            int
	Mode            string // debug, release, test
	ShutdownTimeout time.Duration
	CORSOrigins     []string
}

// DatabaseConfig holds the database configuration
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	Debug           bool
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds the Redis configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTL      time.Duration
}

// ServiceBusConfig holds the Azure Service Bus configuration. An empty
// connection string disables publishing.
type ServiceBusConfig struct {
	ConnectionString string
	AlertQueue       string
}

// NewRelicConfig holds the New Relic configuration
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// AuthConfig holds the settings for validating tokens issued by the
// platform's auth service.
type AuthConfig struct {
	JWTSecret string
}

// BroadcastConfig holds the websocket hub configuration
type BroadcastConfig struct {
	SendBuffer    int
	PublishBuffer int
	WriteWait     time.Duration
	PongWait      time.Duration
}

// LoggingConfig holds the logging configuration
type LoggingConfig struct {
	Level string
	JSON  bool
}

// InitConfig initializes the configuration using Viper
func InitConfig(cfgFile string) error {
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/telemetry-service")
		viper.SetConfigName("config")
	}

	// TELEMETRY_SERVER_PORT overrides server.port, and so on
	viper.SetEnvPrefix("TELEMETRY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// Load builds the typed configuration from viper's state.
func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Port:            viper.GetInt("server.port"),
			Mode:            viper.GetString("server.mode"),
			ShutdownTimeout: viper.GetDuration("server.shutdowntimeout"),
			CORSOrigins:     viper.GetStringSlice("server.corsorigins"),
		},
		Database: DatabaseConfig{
			Host:            viper.GetString("database.host"),
			Port:            viper.GetInt("database.port"),
			User:            viper.GetString("database.user"),
			Password:        viper.GetString("database.password"),
			DBName:          viper.GetString("database.dbname"),
			SSLMode:         viper.GetString("database.sslmode"),
			Debug:           viper.GetBool("database.debug"),
			MaxOpenConns:    viper.GetInt("database.maxopenconns"),
			MaxIdleConns:    viper.GetInt("database.maxidleconns"),
			ConnMaxLifetime: viper.GetDuration("database.connmaxlifetime"),
		},
		Redis: RedisConfig{
			Enabled:  viper.GetBool("redis.enabled"),
			Host:     viper.GetString("redis.host"),
			Port:     viper.GetInt("redis.port"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
			TTL:      viper.GetDuration("redis.ttl"),
		},
		ServiceBus: ServiceBusConfig{
			ConnectionString: viper.GetString("servicebus.connectionstring"),
			AlertQueue:       viper.GetString("servicebus.alertqueue"),
		},
		NewRelic: NewRelicConfig{
			AppName:    viper.GetString("newrelic.appname"),
			LicenseKey: viper.GetString("newrelic.licensekey"),
			Enabled:    viper.GetBool("newrelic.enabled"),
		},
		Auth: AuthConfig{
			JWTSecret: viper.GetString("auth.jwtsecret"),
		},
		Broadcast: BroadcastConfig{
			SendBuffer:    viper.GetInt("broadcast.sendbuffer"),
			PublishBuffer: viper.GetInt("broadcast.publishbuffer"),
			WriteWait:     viper.GetDuration("broadcast.writewait"),
			PongWait:      viper.GetDuration("broadcast.pongwait"),
		},
		Logging: LoggingConfig{
			Level: viper.GetString("logging.level"),
			JSON:  viper.GetBool("logging.json"),
		},
	}, nil
}

// setDefaults sets default values for configuration
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", 8093)
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("server.shutdowntimeout", 10*time.Second)
	viper.SetDefault("server.corsorigins", []string{"*"})

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "telemetry")
	viper.SetDefault("database.password", "telemetry")
	viper.SetDefault("database.dbname", "telemetry_service_db")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.debug", false)
	viper.SetDefault("database.maxopenconns", 25)
	viper.SetDefault("database.maxidleconns", 5)
	viper.SetDefault("database.connmaxlifetime", 30*time.Minute)

	// Redis defaults
	viper.SetDefault("redis.enabled", true)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.ttl", time.Hour)

	// Service Bus defaults - no default connection string
	viper.SetDefault("servicebus.alertqueue", "fleet-alerts")

	// New Relic defaults
	viper.SetDefault("newrelic.appname", "Telemetry Service Local")
	viper.SetDefault("newrelic.enabled", false)

	// Auth defaults - the secret must be provided, matching the auth service
	viper.SetDefault("auth.jwtsecret", "")

	// Broadcast defaults
	viper.SetDefault("broadcast.sendbuffer", 32)
	viper.SetDefault("broadcast.publishbuffer", 256)
	viper.SetDefault("broadcast.writewait", 10*time.Second)
	viper.SetDefault("broadcast.pongwait", 60*time.Second)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.json", false)
}
