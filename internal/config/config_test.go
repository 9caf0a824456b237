package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTPAddr != ":9000" || cfg.EventStore != "memory" || cfg.SagaMode != "orchestration" ||
		cfg.StepTimeout != 3*time.Second || cfg.StepAttempts != 3 || cfg.LogLevel != logrus.InfoLevel {
		t.Fatalf("defaults = %+v", cfg)
	}
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":8080")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SAGA_STORE", "redis")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("STEP_TIMEOUT", "500ms")
	t.Setenv("SAGA_MODE", "choreography")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.LogLevel != logrus.DebugLevel || cfg.SagaStore != "redis" ||
		cfg.RedisDB != 2 || cfg.StepTimeout != 500*time.Millisecond || cfg.SagaMode != "choreography" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoad_DotEnvDoesNotOverrideEnvironment(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":7000")
	t.Setenv("COMMAND_SHARDS", "")
	os.Unsetenv("COMMAND_SHARDS")

	file := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(file, []byte("HTTP_ADDR=:1111\nCOMMAND_SHARDS=4\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(file)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTPAddr != ":7000" || cfg.CommandShards != 4 {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("EVENT_STORE", "postgres")
	t.Setenv("STEP_ATTEMPTS", "0")
	t.Setenv("STEP_TIMEOUT", "soon")
	t.Setenv("LOG_LEVEL", "loud")

	_, err := Load()
	if err == nil {
		t.Fatal("expected an error")
	}
	for _, key := range []string{"EVENT_STORE", "STEP_ATTEMPTS", "STEP_TIMEOUT", "LOG_LEVEL"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error %q does not mention %s", err, key)
		}
	}
}

func TestLoad_DatabaseURLRequired(t *testing.T) {
	t.Setenv("SAGA_STORE", "postgres")
	t.Setenv("DATABASE_URL", "")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Fatalf("err = %v", err)
	}
}

func TestLoad_ChoreographyNeedsEventFeed(t *testing.T) {
	t.Setenv("SAGA_MODE", "choreography")
	t.Setenv("EVENT_STORE", "kurrentdb")
	t.Setenv("EVENT_BUS", "memory")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "EVENT_BUS=kurrentdb") {
		t.Fatalf("err = %v", err)
	}
}
