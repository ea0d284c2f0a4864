package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/auth"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-node/internal/input"
	"github.com/nerrad567/gray-logic-node/internal/radio"
	"github.com/nerrad567/gray-logic-node/internal/watchdog"
)

const testSecret = "test-secret-key-at-least-32-characters-long"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestRun_InvalidConfig(t *testing.T) {
	err := run(context.Background(), []string{"-config", "/nonexistent/path/config.yaml"}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "loading config") {
		t.Fatalf("run() error = %v, want loading config error", err)
	}
}

func TestRun_BadFlag(t *testing.T) {
	if err := run(context.Background(), []string{"-bogus"}, &bytes.Buffer{}); err == nil {
		t.Fatal("run() should fail on an unknown flag")
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("GLNODE_CONFIG", "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}
	t.Setenv("GLNODE_CONFIG", "/etc/glnode.yaml")
	if got := getConfigPath(); got != "/etc/glnode.yaml" {
		t.Errorf("getConfigPath() = %q, want /etc/glnode.yaml", got)
	}

	opts, err := parseFlags([]string{"-config", "/tmp/x.yaml"})
	if err != nil || opts.configPath != "/tmp/x.yaml" {
		t.Errorf("parseFlags() = %+v, %v", opts, err)
	}
}

func TestRun_PrintToken(t *testing.T) {
	path := writeConfig(t, `
network:
  driver: none
security:
  jwt:
    secret: "`+testSecret+`"
`)

	var out bytes.Buffer
	if err := run(context.Background(), []string{"-config", path, "-token", "alice", "-scopes", "command"}, &out); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	claims, err := auth.Parse(strings.TrimSpace(out.String()), testSecret)
	if err != nil {
		t.Fatalf("printed token does not parse: %v", err)
	}
	if claims.Subject != "alice" || !claims.Allows(auth.ScopeCommand) || claims.Allows(auth.ScopeRead) {
		t.Errorf("claims = %+v", claims)
	}
}

func TestPrintToken_Errors(t *testing.T) {
	opts := options{tokenFor: "alice", scopes: "admin"}
	if err := printToken(&bytes.Buffer{}, testSecret, opts); err == nil {
		t.Error("printToken() should reject an unknown scope")
	}

	opts.scopes = "read"
	if err := printToken(&bytes.Buffer{}, "", opts); !errors.Is(err, auth.ErrNoSecret) {
		t.Errorf("printToken() error = %v, want ErrNoSecret", err)
	}
}

func TestCredentials(t *testing.T) {
	creds := credentials(config.NetworkConfig{Driver: "none"})
	if err := creds.Validate(); err != nil {
		t.Errorf("none driver credentials invalid: %v", err)
	}

	creds = credentials(config.NetworkConfig{Driver: "nmcli", SSID: "workshop", Passphrase: "pw"})
	if creds.SSID != "workshop" || creds.Passphrase != "pw" {
		t.Errorf("credentials() = %+v", creds)
	}
}

func TestDriverSelection(t *testing.T) {
	if _, ok := newRadio(config.NetworkConfig{Driver: "none"}).(radio.None); !ok {
		t.Error("none driver should select radio.None")
	}
	if _, ok := newRadio(config.NetworkConfig{Driver: "nmcli"}).(*radio.NMCLI); !ok {
		t.Error("nmcli driver should select *radio.NMCLI")
	}

	src, err := openButton(config.InputConfig{Driver: "none"})
	if err != nil {
		t.Fatalf("openButton() error = %v", err)
	}
	if _, ok := src.(input.NoneSource); !ok {
		t.Errorf("none input driver returned %T", src)
	}
}

func TestCloseWatchdog(t *testing.T) {
	cause := errors.New("boom")
	if err := closeWatchdog(watchdog.Noop{}, cause); !errors.Is(err, cause) {
		t.Errorf("closeWatchdog() = %v, want cause", err)
	}
	if err := closeWatchdog(watchdog.Noop{}, nil); err != nil {
		t.Errorf("closeWatchdog() = %v, want nil", err)
	}
}

// TestRun_StartsAndStops boots the whole node with the none drivers and an
// unreachable broker, then cancels it.
func TestRun_StartsAndStops(t *testing.T) {
	if testing.Short() {
		t.Skip("boots the full node")
	}

	dir := t.TempDir()
	path := writeConfig(t, `
device:
  id: "test-node"
  topic_prefix: "glnode/test"
network:
  driver: none
mqtt:
  broker:
    host: "127.0.0.1"
    port: 1
  topic: "glnode/test/message"
  connect_timeout: 200ms
input:
  driver: none
api:
  host: "127.0.0.1"
  port: 18473
database:
  path: "`+filepath.Join(dir, "glnode.db")+`"
logging:
  level: error
`)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if err := run(ctx, []string{"-config", path}, &bytes.Buffer{}); err != nil {
		t.Fatalf("run() error = %v, want nil on clean shutdown", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "glnode.db")); err != nil {
		t.Errorf("database not created: %v", err)
	}
}
