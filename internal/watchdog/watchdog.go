// Package watchdog services the hardware watchdog timer.
//
// A Linux watchdog device reboots the board unless it is written to within
// its timeout. Writing 'V' before closing disarms it (magic close), so a
// clean shutdown does not trigger a reset.
package watchdog

import (
	"fmt"
	"os"
	"sync"
)

// magicClose disarms the watchdog on close.
const magicClose = 'V'

// Feeder is a watchdog that must be fed periodically.
type Feeder interface {
	Feed() error
	Close() error
}

// Open opens the watchdog device at path. An empty path returns a Noop
// feeder for hosts without a hardware watchdog.
func Open(path string) (Feeder, error) {
	if path == "" {
		return Noop{}, nil
	}
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("opening watchdog %s: %w", path, err)
	}
	return &Device{f: f, path: path}, nil
}

// Device feeds a watchdog character device.
type Device struct {
	mu     sync.Mutex
	f      *os.File
	path   string
	closed bool
}

// Feed pets the watchdog.
func (d *Device) Feed() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return fmt.Errorf("feeding watchdog %s: %w", d.path, os.ErrClosed)
	}
	if _, err := d.f.Write([]byte{0}); err != nil {
		return fmt.Errorf("feeding watchdog %s: %w", d.path, err)
	}
	return nil
}

// Close disarms and closes the device. Safe to call twice.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true

	_, werr := d.f.Write([]byte{magicClose})
	if err := d.f.Close(); err != nil {
		return fmt.Errorf("closing watchdog %s: %w", d.path, err)
	}
	if werr != nil {
		return fmt.Errorf("disarming watchdog %s: %w", d.path, werr)
	}
	return nil
}

// Noop is a Feeder that does nothing.
type Noop struct{}

// Feed does nothing.
func (Noop) Feed() error { return nil }

// Close does nothing.
func (Noop) Close() error { return nil }
