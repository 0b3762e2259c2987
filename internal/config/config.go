// Package config assembles the service configuration from built-in defaults,
// an optional JSON file, the environment (with .env support) and command-line
// flags, in that order of increasing priority.
package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	env "github.com/caarlos0/env/v6"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds every tunable of the service.
type Config struct {
	RunAddr             string        `env:"SERVER_ADDRESS" json:"server_address" validate:"hostname_port"`
	GRPCAddr            string        `env:"GRPC_ADDRESS" json:"grpc_address" validate:"omitempty,hostname_port"`
	LogLevel            string        `env:"LOG_LEVEL" json:"log_level" validate:"loglevel"`
	DBFileName          string        `env:"FILE_STORAGE_PATH" json:"file_storage_path" validate:"omitempty,filepath"`
	DatabaseDSN         string        `env:"DATABASE_DSN" json:"database_dsn"`
	MongoURI            string        `env:"MONGO_URI" json:"mongo_uri" validate:"omitempty,uri"`
	MongoDatabase       string        `env:"MONGO_DATABASE" json:"mongo_database" validate:"required"`
	DBConnectionTimeout time.Duration `env:"DB_CONNECTION_TIMEOUT" json:"db_connection_timeout" validate:"gt=0"`
	JWTSecretKey        string        `env:"JWT_SECRET_KEY" json:"jwt_secret_key" validate:"required"`
	CatalogSeedPath     string        `env:"CATALOG_SEED_PATH" json:"catalog_seed_path" validate:"omitempty,filepath"`
	CatalogCacheTTL     time.Duration `env:"CATALOG_CACHE_TTL" json:"catalog_cache_ttl" validate:"gt=0"`
	RequestTimeout      time.Duration `env:"REQUEST_TIMEOUT" json:"request_timeout" validate:"gt=0"`
	TrustedSubnet       string        `env:"TRUSTED_SUBNET" json:"trusted_subnet" validate:"omitempty,cidr"`
	AuthRateLimit       float64       `env:"AUTH_RATE_LIMIT" json:"auth_rate_limit" validate:"gte=0"`
	AuthRateBurst       int           `env:"AUTH_RATE_BURST" json:"auth_rate_burst" validate:"gte=0"`
	CORSAllowedOrigins  []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," json:"cors_allowed_origins"`
	ConfigFile          string        `env:"CONFIG" json:"-"`
}

// jsonConfig mirrors Config for the JSON file. Durations are written as
// strings there ("10s", "1m").
type jsonConfig struct {
	RunAddr             *string   `json:"server_address"`
	GRPCAddr            *string   `json:"grpc_address"`
	LogLevel            *string   `json:"log_level"`
	DBFileName          *string   `json:"file_storage_path"`
	DatabaseDSN         *string   `json:"database_dsn"`
	MongoURI            *string   `json:"mongo_uri"`
	MongoDatabase       *string   `json:"mongo_database"`
	DBConnectionTimeout *string   `json:"db_connection_timeout"`
	JWTSecretKey        *string   `json:"jwt_secret_key"`
	CatalogSeedPath     *string   `json:"catalog_seed_path"`
	CatalogCacheTTL     *string   `json:"catalog_cache_ttl"`
	RequestTimeout      *string   `json:"request_timeout"`
	TrustedSubnet       *string   `json:"trusted_subnet"`
	AuthRateLimit       *float64  `json:"auth_rate_limit"`
	AuthRateBurst       *int      `json:"auth_rate_burst"`
	CORSAllowedOrigins  *[]string `json:"cors_allowed_origins"`
}

const defaultJWTSecretKey = "vidlib-development-secret"

var defaultConfig = Config{
	RunAddr:             ":8000",
	GRPCAddr:            ":3200",
	LogLevel:            "info",
	MongoDatabase:       "play",
	DBConnectionTimeout: 10 * time.Second,
	JWTSecretKey:        defaultJWTSecretKey,
	CatalogCacheTTL:     time.Minute,
	RequestTimeout:      10 * time.Second,
	AuthRateLimit:       5,
	AuthRateBurst:       10,
	CORSAllowedOrigins:  []string{"*"},
}

func validateFilePath(fieldLevel validator.FieldLevel) bool {
	path := fieldLevel.Field().String()
	_, err := os.Stat(path)

	return err == nil || os.IsNotExist(err)
}

func validateLogLevel(fieldLevel validator.FieldLevel) bool {
	value := fieldLevel.Field().String()

	allowedLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
	}

	return allowedLogLevels[value]
}

func (c *Config) validate() error {
	validate := validator.New()

	err := validate.RegisterValidation("loglevel", validateLogLevel)
	if err != nil {
		return err
	}

	err = validate.RegisterValidation("filepath", validateFilePath)
	if err != nil {
		return err
	}

	return validate.Struct(c)
}

// InitOption tunes New.
type InitOption func(*initOptions)

type initOptions struct {
	disableFlagsParsing bool
	args                []string
}

// WithDisableFlagsParsing skips the command-line layer. Tests use it to avoid
// touching the global flag set.
func WithDisableFlagsParsing(disableFlagsParsing bool) InitOption {
	return func(options *initOptions) {
		options.disableFlagsParsing = disableFlagsParsing
	}
}

// WithArgs overrides os.Args[1:] as the source of command-line flags.
func WithArgs(args []string) InitOption {
	return func(options *initOptions) {
		options.args = args
	}
}

func applyDefaults(values *Config, defaults Config) {
	*values = defaults
	values.CORSAllowedOrigins = append([]string(nil), defaults.CORSAllowedOrigins...)
}

func parseDuration(dst *time.Duration, raw *string, name string) error {
	if raw == nil {
		return nil
	}
	d, err := time.ParseDuration(*raw)
	if err != nil {
		return fmt.Errorf("in internal/config/config.go: invalid %s %q: %w", name, *raw, err)
	}
	*dst = d

	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func (c *Config) applyJSON(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("in internal/config/config.go: error while reading config file: %w", err)
	}

	var values jsonConfig
	if err := json.Unmarshal(raw, &values); err != nil {
		return fmt.Errorf("in internal/config/config.go: error while parsing config file: %w", err)
	}

	setString(&c.RunAddr, values.RunAddr)
	setString(&c.GRPCAddr, values.GRPCAddr)
	setString(&c.LogLevel, values.LogLevel)
	setString(&c.DBFileName, values.DBFileName)
	setString(&c.DatabaseDSN, values.DatabaseDSN)
	setString(&c.MongoURI, values.MongoURI)
	setString(&c.MongoDatabase, values.MongoDatabase)
	setString(&c.JWTSecretKey, values.JWTSecretKey)
	setString(&c.CatalogSeedPath, values.CatalogSeedPath)
	setString(&c.TrustedSubnet, values.TrustedSubnet)
	if values.AuthRateLimit != nil {
		c.AuthRateLimit = *values.AuthRateLimit
	}
	if values.AuthRateBurst != nil {
		c.AuthRateBurst = *values.AuthRateBurst
	}
	if values.CORSAllowedOrigins != nil {
		c.CORSAllowedOrigins = *values.CORSAllowedOrigins
	}

	if err := parseDuration(&c.DBConnectionTimeout, values.DBConnectionTimeout, "db_connection_timeout"); err != nil {
		return err
	}
	if err := parseDuration(&c.CatalogCacheTTL, values.CatalogCacheTTL, "catalog_cache_ttl"); err != nil {
		return err
	}

	return parseDuration(&c.RequestTimeout, values.RequestTimeout, "request_timeout")
}

func (c *Config) applyEnv(fromEnv Config) {
	if fromEnv.RunAddr != "" {
		c.RunAddr = fromEnv.RunAddr
	}
	if _, ok := os.LookupEnv("GRPC_ADDRESS"); ok {
		c.GRPCAddr = fromEnv.GRPCAddr
	}
	if fromEnv.LogLevel != "" {
		c.LogLevel = fromEnv.LogLevel
	}
	if fromEnv.DBFileName != "" {
		c.DBFileName = fromEnv.DBFileName
	}
	if fromEnv.DatabaseDSN != "" {
		c.DatabaseDSN = fromEnv.DatabaseDSN
	}
	if fromEnv.MongoURI != "" {
		c.MongoURI = fromEnv.MongoURI
	}
	if fromEnv.MongoDatabase != "" {
		c.MongoDatabase = fromEnv.MongoDatabase
	}
	if fromEnv.DBConnectionTimeout != 0 {
		c.DBConnectionTimeout = fromEnv.DBConnectionTimeout
	}
	if fromEnv.JWTSecretKey != "" {
		c.JWTSecretKey = fromEnv.JWTSecretKey
	}
	if fromEnv.CatalogSeedPath != "" {
		c.CatalogSeedPath = fromEnv.CatalogSeedPath
	}
	if fromEnv.CatalogCacheTTL != 0 {
		c.CatalogCacheTTL = fromEnv.CatalogCacheTTL
	}
	if fromEnv.RequestTimeout != 0 {
		c.RequestTimeout = fromEnv.RequestTimeout
	}
	if fromEnv.TrustedSubnet != "" {
		c.TrustedSubnet = fromEnv.TrustedSubnet
	}
	// 0 is meaningful here: it turns rate limiting off.
	if _, ok := os.LookupEnv("AUTH_RATE_LIMIT"); ok {
		c.AuthRateLimit = fromEnv.AuthRateLimit
	}
	if fromEnv.AuthRateBurst != 0 {
		c.AuthRateBurst = fromEnv.AuthRateBurst
	}
	if len(fromEnv.CORSAllowedOrigins) > 0 {
		c.CORSAllowedOrigins = fromEnv.CORSAllowedOrigins
	}
}

// applyFlags overlays the values of explicitly passed flags only, so that a
// flag's default never shadows a value coming from a lower layer.
func (c *Config) applyFlags(args []string) error {
	fs := flag.NewFlagSet("vidlib", flag.ContinueOnError)

	var (
		configFile    string
		origins       string
		fromFlags     = Config{}
	)
	fs.StringVar(&configFile, "c", "", "path to the JSON configuration file")
	fs.StringVar(&fromFlags.RunAddr, "a", c.RunAddr, "address and port to run the HTTP server")
	fs.StringVar(&fromFlags.GRPCAddr, "g", c.GRPCAddr, "address and port to run the gRPC server, empty disables it")
	fs.StringVar(&fromFlags.LogLevel, "l", c.LogLevel, "logger level")
	fs.StringVar(&fromFlags.DBFileName, "f", c.DBFileName, "JSON file name with database")
	fs.StringVar(&fromFlags.DatabaseDSN, "d", c.DatabaseDSN, "PostgreSQL connection string")
	fs.StringVar(&fromFlags.MongoURI, "m", c.MongoURI, "MongoDB connection URI")
	fs.StringVar(&fromFlags.JWTSecretKey, "k", c.JWTSecretKey, "token signing secret")
	fs.StringVar(&fromFlags.CatalogSeedPath, "s", c.CatalogSeedPath, "JSON file with the catalog seed")
	fs.StringVar(&fromFlags.TrustedSubnet, "t", c.TrustedSubnet, "CIDR allowed to query internal stats")
	fs.StringVar(&origins, "o", "", "comma separated CORS allowed origins")

	if err := fs.Parse(args); err != nil {
		return err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "a":
			c.RunAddr = fromFlags.RunAddr
		case "g":
			c.GRPCAddr = fromFlags.GRPCAddr
		case "l":
			c.LogLevel = fromFlags.LogLevel
		case "f":
			c.DBFileName = fromFlags.DBFileName
		case "d":
			c.DatabaseDSN = fromFlags.DatabaseDSN
		case "m":
			c.MongoURI = fromFlags.MongoURI
		case "k":
			c.JWTSecretKey = fromFlags.JWTSecretKey
		case "s":
			c.CatalogSeedPath = fromFlags.CatalogSeedPath
		case "t":
			c.TrustedSubnet = fromFlags.TrustedSubnet
		case "o":
			c.CORSAllowedOrigins = strings.Split(origins, ",")
		}
	})

	return nil
}

// lookupConfigFlag finds -c/--c in args without parsing the rest, so the JSON
// layer can be applied before the flags that override it.
func lookupConfigFlag(args []string) string {
	for i, arg := range args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if !strings.HasPrefix(arg, "-") || name != "c" {
			continue
		}
		if hasValue {
			return value
		}
		if i+1 < len(args) {
			return args[i+1]
		}
	}

	return ""
}

// New builds the configuration.
func New(optionsProto ...InitOption) (*Config, error) {
	options := &initOptions{
		disableFlagsParsing: false,
		args:                os.Args[1:],
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	err := godotenv.Load()
	if err != nil {
		log.Printf("Unable to load .env file: %v", err)
	}

	values := &Config{}
	applyDefaults(values, defaultConfig)

	var valuesFromEnv Config
	if err := env.Parse(&valuesFromEnv); err != nil {
		return nil, err
	}

	configFile := valuesFromEnv.ConfigFile
	if !options.disableFlagsParsing {
		if fromFlag := lookupConfigFlag(options.args); fromFlag != "" {
			configFile = fromFlag
		}
	}
	if configFile != "" {
		if err := values.applyJSON(configFile); err != nil {
			return nil, err
		}
		values.ConfigFile = configFile
	}

	values.applyEnv(valuesFromEnv)

	if !options.disableFlagsParsing {
		if err := values.applyFlags(options.args); err != nil {
			return nil, err
		}
	}

	if err := values.validate(); err != nil {
		return nil, err
	}

	return values, nil
}

// UsesDevelopmentSecret reports whether tokens are signed with the built-in
// secret, which must not be used outside development.
func (c *Config) UsesDevelopmentSecret() bool {
	return c.JWTSecretKey == defaultJWTSecretKey
}
