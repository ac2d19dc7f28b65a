package config

import (
	"coderooms/rooms"
	"os"
	"reflect"
	"testing"

	"github.com/sirupsen/logrus"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"LISTEN_ADDR", "PORT", "LOG_LEVEL", "LOG_FORMAT", "CREATE_POLICY",
		"ROOM_PLACEHOLDER", "QUEUE_SIZE", "ALLOWED_ORIGINS",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ListenAddr != ":5000" {
		t.Errorf("ListenAddr = %q, want :5000", cfg.ListenAddr)
	}
	if cfg.LogLevel != logrus.InfoLevel || cfg.LogFormat != "text" {
		t.Errorf("logging = %v/%s", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.CreatePolicy != rooms.CreateJoins {
		t.Errorf("CreatePolicy = %q", cfg.CreatePolicy)
	}
	if cfg.Placeholder != rooms.DefaultPlaceholder || cfg.QueueSize != 256 {
		t.Errorf("room defaults = %q/%d", cfg.Placeholder, cfg.QueueSize)
	}
	if cfg.AllowedOrigins != nil {
		t.Errorf("AllowedOrigins = %v, want nil", cfg.AllowedOrigins)
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "8080")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("CREATE_POLICY", "reset")
	t.Setenv("ROOM_PLACEHOLDER", "# notes")
	t.Setenv("QUEUE_SIZE", "16")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example,")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, want :8080", cfg.ListenAddr)
	}
	if cfg.LogLevel != logrus.DebugLevel || cfg.LogFormat != "json" {
		t.Errorf("logging = %v/%s", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.CreatePolicy != rooms.CreateResets {
		t.Errorf("CreatePolicy = %q, want reset", cfg.CreatePolicy)
	}
	if cfg.Placeholder != "# notes" {
		t.Errorf("Placeholder = %q, want # notes", cfg.Placeholder)
	}
	if cfg.QueueSize != 16 {
		t.Errorf("QueueSize = %d, want 16", cfg.QueueSize)
	}
	want := []string{"https://a.example", "https://b.example"}
	if !reflect.DeepEqual(cfg.AllowedOrigins, want) {
		t.Errorf("AllowedOrigins = %v, want %v", cfg.AllowedOrigins, want)
	}
}

func TestFlagsOverrideEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("LISTEN_ADDR", ":7000")
	t.Setenv("PORT", "8080")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("CREATE_POLICY", "reset")
	t.Setenv("QUEUE_SIZE", "16")

	cfg, err := Load([]string{"-listen", "127.0.0.1:9000", "-loglevel", "warn", "-create-policy", "join", "-queue-size", "8"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ListenAddr != "127.0.0.1:9000" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.LogLevel != logrus.WarnLevel {
		t.Errorf("LogLevel = %v, want warn", cfg.LogLevel)
	}
	if cfg.CreatePolicy != rooms.CreateJoins {
		t.Errorf("CreatePolicy = %q, want join", cfg.CreatePolicy)
	}
	if cfg.QueueSize != 8 {
		t.Errorf("QueueSize = %d, want 8", cfg.QueueSize)
	}
}

func TestListenAddrPrefersListenAddrEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("LISTEN_ADDR", ":7000")
	t.Setenv("PORT", "8080")

	if got := envListenAddr(); got != ":7000" {
		t.Errorf("envListenAddr() = %q, want :7000", got)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string][]string{
		"log level":     {"-loglevel", "loud"},
		"log format":    {"-logformat", "xml"},
		"create policy": {"-create-policy", "merge"},
		"queue size":    {"-queue-size", "0"},
		"unknown flag":  {"-nope"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			if _, err := Load(args); err == nil {
				t.Errorf("Load(%v) succeeded, want error", args)
			}
		})
	}
}

func TestLoadRejectsBadQueueSizeEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("QUEUE_SIZE", "lots")

	if _, err := Load(nil); err == nil {
		t.Error("Load succeeded with a non-numeric QUEUE_SIZE")
	}
}

func TestQueueSizeFlagIgnoresBadEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("QUEUE_SIZE", "lots")

	cfg, err := Load([]string{"-queue-size", "8"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.QueueSize != 8 {
		t.Errorf("QueueSize = %d, want 8", cfg.QueueSize)
	}
}
