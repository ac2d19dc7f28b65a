package config

import (
	"coderooms/rooms"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	defaultListenAddr = ":5000"
	defaultQueueSize  = 256
)

type Config struct {
	ListenAddr     string
	LogLevel       logrus.Level
	LogFormat      string
	CreatePolicy   rooms.CreatePolicy
	Placeholder    string
	QueueSize      int
	AllowedOrigins []string
}

// Load reads the configuration from args, falling back to the environment
// (optionally populated from a .env file) and then to defaults.
func Load(args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found")
	}

	fs := flag.NewFlagSet("coderooms", flag.ContinueOnError)
	listenAddr := fs.String("listen", envListenAddr(), "Set the server listen address")
	logLevel := fs.String("loglevel", getEnv("LOG_LEVEL", "info"), "Set the logging level: debug, info, warn, error, fatal, panic")
	logFormat := fs.String("logformat", getEnv("LOG_FORMAT", "text"), "Set the log format: text or json")
	createPolicy := fs.String("create-policy", getEnv("CREATE_POLICY", string(rooms.CreateJoins)), "What createRoom does on a live id: join or reset")
	placeholder := fs.String("placeholder", getEnv("ROOM_PLACEHOLDER", rooms.DefaultPlaceholder), "Initial buffer of a new room")
	queueSize := fs.Int("queue-size", defaultQueueSize, "Capacity of the gateway event queue")
	allowedOrigins := fs.String("allowed-origins", getEnv("ALLOWED_ORIGINS", ""), "Comma separated list of allowed origins, * for any; empty allows localhost only")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if v := os.Getenv("QUEUE_SIZE"); v != "" && !isSet(fs, "queue-size") {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("parse QUEUE_SIZE: %w", err)
		}
		*queueSize = n
	}

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	policy, err := rooms.ParseCreatePolicy(*createPolicy)
	if err != nil {
		return nil, err
	}
	if *logFormat != "text" && *logFormat != "json" {
		return nil, fmt.Errorf("unknown log format %q", *logFormat)
	}
	if *queueSize <= 0 {
		return nil, errors.New("queue size must be positive")
	}

	return &Config{
		ListenAddr:     *listenAddr,
		LogLevel:       level,
		LogFormat:      *logFormat,
		CreatePolicy:   policy,
		Placeholder:    *placeholder,
		QueueSize:      *queueSize,
		AllowedOrigins: splitList(*allowedOrigins),
	}, nil
}

func isSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

// ConfigureLogging applies the log level and format to the standard logger.
func (c *Config) ConfigureLogging() {
	logrus.SetLevel(c.LogLevel)
	if c.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}

// envListenAddr prefers LISTEN_ADDR and accepts a bare PORT as used by most
// hosting platforms.
func envListenAddr() string {
	if addr := os.Getenv("LISTEN_ADDR"); addr != "" {
		return addr
	}
	if port := os.Getenv("PORT"); port != "" {
		return ":" + port
	}
	return defaultListenAddr
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
