package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("orders")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ServiceName != "orders" {
		t.Errorf("ServiceName = %q, want %q", cfg.ServiceName, "orders")
	}
	if cfg.Mode != DeliveryAsync {
		t.Errorf("Mode = %q, want %q", cfg.Mode, DeliveryAsync)
	}
	if cfg.ParseMode != ParseNative {
		t.Errorf("ParseMode = %q, want %q", cfg.ParseMode, ParseNative)
	}
	if cfg.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", cfg.MaxAttempts)
	}
	if cfg.HTTPTimeout != 10*time.Second {
		t.Errorf("HTTPTimeout = %v, want 10s", cfg.HTTPTimeout)
	}
	if cfg.DeadLetterPolicy != DeadLetterFlag {
		t.Errorf("DeadLetterPolicy = %q, want %q", cfg.DeadLetterPolicy, DeadLetterFlag)
	}
	if cfg.StorageBackend != StorageMemory {
		t.Errorf("StorageBackend = %q, want %q", cfg.StorageBackend, StorageMemory)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("BEACON_DELIVERY_MODE", "sync")
	t.Setenv("BEACON_PARSE_MODE", "pattern")
	t.Setenv("BEACON_QUEUE_MAX_ATTEMPTS", "5")
	t.Setenv("BEACON_HTTP_TIMEOUT", "2s")
	t.Setenv("BEACON_QUEUE_DEADLETTER_POLICY", "delete")
	t.Setenv("BEACON_STORAGE_BACKEND", "postgres")
	t.Setenv("BEACON_TENANT_ID", "acme")

	cfg, err := Load("orders")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Mode != DeliverySync {
		t.Errorf("Mode = %q, want %q", cfg.Mode, DeliverySync)
	}
	if cfg.ParseMode != ParsePattern {
		t.Errorf("ParseMode = %q, want %q", cfg.ParseMode, ParsePattern)
	}
	if cfg.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", cfg.MaxAttempts)
	}
	if cfg.HTTPTimeout != 2*time.Second {
		t.Errorf("HTTPTimeout = %v, want 2s", cfg.HTTPTimeout)
	}
	if cfg.DeadLetterPolicy != DeadLetterDelete {
		t.Errorf("DeadLetterPolicy = %q, want %q", cfg.DeadLetterPolicy, DeadLetterDelete)
	}
	if !cfg.UsePostgresStorage() {
		t.Error("UsePostgresStorage() = false, want true")
	}
	if cfg.TenantID != "acme" {
		t.Errorf("TenantID = %q, want %q", cfg.TenantID, "acme")
	}
}

func TestLoad_InvalidMaxAttempts(t *testing.T) {
	t.Setenv("BEACON_QUEUE_MAX_ATTEMPTS", "0")

	_, err := Load("orders")
	if err == nil {
		t.Fatal("Load() expected error for zero max attempts, got nil")
	}
}

func TestSignalURL(t *testing.T) {
	cfg := &Config{CollectorURL: "http://collector:4318/"}

	if got := cfg.SignalURL("traces"); got != "http://collector:4318/v1/traces" {
		t.Errorf("SignalURL(traces) = %q", got)
	}
	if got := cfg.SignalURL("logs"); got != "http://collector:4318/v1/logs" {
		t.Errorf("SignalURL(logs) = %q", got)
	}

	cfg.MetricsEndpoint = "http://other:9999/metrics"
	if got := cfg.SignalURL("metrics"); got != "http://other:9999/metrics" {
		t.Errorf("SignalURL(metrics) override = %q", got)
	}
}

func TestDatabaseDSN(t *testing.T) {
	cfg := &Config{
		DBHost: "db", DBPort: 5433, DBUser: "u", DBPassword: "p",
		DBName: "beacon", DBSSLMode: "require",
	}
	want := "host=db port=5433 user=u password=p dbname=beacon sslmode=require"
	if got := cfg.DatabaseDSN(); got != want {
		t.Errorf("DatabaseDSN() = %q, want %q", got, want)
	}
}
