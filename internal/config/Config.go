package config

import (
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Config holds everything cmd/main needs to wire the service.
type Config struct {
	WebserverIP   string `validate:"omitempty,ip|hostname"`
	WebserverPort int    `validate:"min=1,max=65535"`

	RabbitMQIP   string `validate:"required"`
	RabbitMQUser string
	RabbitMQPass string

	MongoIP   string `validate:"required"`
	MongoUser string
	MongoPass string

	LogDevelopment bool
	LogDebug       bool
	LogFile        string

	// DataDir is the root that scene directories in requests must live under.
	DataDir string `validate:"required"`
}

var validate = validator.New()

// Load reads envFile (if it exists) into the process environment without overriding variables that are
// already set, then builds and validates a Config.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(err, "load %s", envFile)
		}
	}

	cfg := &Config{
		WebserverIP:  os.Getenv("WEBSERVER_IP"),
		RabbitMQIP:   os.Getenv("RABBITMQ_IP"),
		RabbitMQUser: os.Getenv("RABBITMQ_DEFAULT_USER"),
		RabbitMQPass: os.Getenv("RABBITMQ_DEFAULT_PASS"),
		MongoIP:      os.Getenv("MONGO_IP"),
		MongoUser:    os.Getenv("MONGO_INITDB_ROOT_USERNAME"),
		MongoPass:    os.Getenv("MONGO_INITDB_ROOT_PASSWORD"),
		LogFile:      getenvDefault("LOG_FILE", "converter.log"),
		DataDir:      getenvDefault("DATA_DIR", "data"),
	}

	var err error
	if cfg.WebserverPort, err = strconv.Atoi(getenvDefault("WEBSERVER_PORT", "5000")); err != nil {
		return nil, errors.Wrap(err, "WEBSERVER_PORT")
	}
	if cfg.LogDevelopment, err = strconv.ParseBool(getenvDefault("LOG_DEVELOPMENT", "false")); err != nil {
		return nil, errors.Wrap(err, "LOG_DEVELOPMENT")
	}
	if cfg.LogDebug, err = strconv.ParseBool(getenvDefault("LOG_DEBUG", "false")); err != nil {
		return nil, errors.Wrap(err, "LOG_DEBUG")
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

// MongoURI returns the connection string for the MongoDB instance.
func (c *Config) MongoURI() string {
	return "mongodb://" + hostWithCredentials(c.MongoUser, c.MongoPass, c.MongoIP, "27017")
}

// AMQPURI returns the connection string for the RabbitMQ broker.
func (c *Config) AMQPURI() string {
	return "amqp://" + hostWithCredentials(c.RabbitMQUser, c.RabbitMQPass, c.RabbitMQIP, "5672") + "/"
}

// ListenAddr returns the address the web server binds to.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.WebserverIP, strconv.Itoa(c.WebserverPort))
}

func hostWithCredentials(user, pass, host, port string) string {
	addr := net.JoinHostPort(host, port)
	if user == "" {
		return addr
	}
	return fmt.Sprintf("%s@%s", url.UserPassword(user, pass).String(), addr)
}
