package radio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/network"
)

// DefaultNMCLIBinary is the NetworkManager client.
const DefaultNMCLIBinary = "nmcli"

// Runner executes a command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// execRunner runs the command with os/exec.
func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec // Binary comes from configuration
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.Bytes(), err
}

// NMCLIConfig holds the NetworkManager driver settings.
type NMCLIConfig struct {
	// Binary is the nmcli executable.
	Binary string

	// Interface is the wireless interface, e.g. wlan0.
	Interface string

	// Timeout bounds one association; nmcli is told to wait this long.
	Timeout time.Duration

	// SysfsRoot is where interface state is read, normally /sys/class/net.
	SysfsRoot string
}

// NMCLI associates using `nmcli device wifi connect`.
type NMCLI struct {
	cfg NMCLIConfig
	run Runner
}

// NewNMCLI creates the driver.
func NewNMCLI(cfg NMCLIConfig) *NMCLI {
	if cfg.Binary == "" {
		cfg.Binary = DefaultNMCLIBinary
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = network.DefaultConnectTimeout
	}
	if cfg.SysfsRoot == "" {
		cfg.SysfsRoot = "/sys/class/net"
	}
	return &NMCLI{cfg: cfg, run: execRunner}
}

// SetRunner replaces the command runner. Used by tests.
func (n *NMCLI) SetRunner(r Runner) {
	n.run = r
}

// Associate starts nmcli in the background. The returned token completes
// when nmcli exits or the timeout kills it.
func (n *NMCLI) Associate(creds network.Credentials) network.Token {
	tok := newToken()
	args := n.connectArgs(creds)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), n.cfg.Timeout)
		defer cancel()

		out, err := n.run(ctx, n.cfg.Binary, args...)
		if ctx.Err() != nil {
			tok.complete(network.ErrAssociationTimeout)
			return
		}
		tok.complete(classifyOutput(out, err))
	}()
	return tok
}

// LinkUp reports whether the interface operstate is "up".
func (n *NMCLI) LinkUp() bool {
	if n.cfg.Interface == "" {
		return false
	}
	data, err := os.ReadFile(filepath.Join(n.cfg.SysfsRoot, n.cfg.Interface, "operstate"))
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(data)) == "up"
}

func (n *NMCLI) connectArgs(creds network.Credentials) []string {
	wait := int(n.cfg.Timeout.Round(time.Second) / time.Second)
	if wait < 1 {
		wait = 1
	}
	args := []string{"--wait", strconv.Itoa(wait), "device", "wifi", "connect", creds.SSID}
	if creds.Passphrase != "" {
		args = append(args, "password", creds.Passphrase)
	}
	if n.cfg.Interface != "" {
		args = append(args, "ifname", n.cfg.Interface)
	}
	return args
}

// authMarkers are nmcli messages that mean the network refused the
// credentials.
var authMarkers = []string{
	"secrets were required",
	"802-11-wireless-security.psk",
	"invalid passphrase",
	"authentication",
}

// classifyOutput maps an nmcli result onto the network error taxonomy.
func classifyOutput(out []byte, err error) error {
	if err == nil {
		return nil
	}

	msg := strings.ToLower(strings.TrimSpace(string(out)))
	for _, m := range authMarkers {
		if strings.Contains(msg, m) {
			return fmt.Errorf("%w: %s", network.ErrAuthRejected, firstLine(msg))
		}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && msg != "" {
		return fmt.Errorf("%w: nmcli exit %d: %s", network.ErrRadioFault, exitErr.ExitCode(), firstLine(msg))
	}
	return fmt.Errorf("%w: %w", network.ErrRadioFault, err)
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
