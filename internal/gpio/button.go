package gpio

import (
	"errors"
	"fmt"
	"sync"

	gpiod "github.com/warthog618/go-gpiocdev"
)

// ErrInvalidLine is returned when the chip or line offset is unusable.
var ErrInvalidLine = errors.New("gpio: invalid line")

// Config selects the button line.
type Config struct {
	// Chip is the character device name, e.g. gpiochip0.
	Chip string

	// Line is the offset of the button within the chip.
	Line int

	// ActiveLow treats a low level as pressed. Buttons wired to ground
	// with a pull-up need this.
	ActiveLow bool

	// PullUp enables the internal pull-up bias.
	PullUp bool
}

// Validate checks the configuration without touching hardware.
func (c Config) Validate() error {
	if c.Chip == "" {
		return fmt.Errorf("%w: chip is required", ErrInvalidLine)
	}
	if c.Line < 0 {
		return fmt.Errorf("%w: line offset %d", ErrInvalidLine, c.Line)
	}
	return nil
}

// options builds the line request options for cfg.
func (c Config) options() []gpiod.LineReqOption {
	opts := []gpiod.LineReqOption{gpiod.AsInput}
	if c.ActiveLow {
		opts = append(opts, gpiod.AsActiveLow)
	}
	if c.PullUp {
		opts = append(opts, gpiod.WithPullUp)
	}
	return opts
}

// line is the subset of *gpiod.Line the button uses.
type line interface {
	Value() (int, error)
	Close() error
}

// Button is an input.Source backed by a requested GPIO line.
type Button struct {
	mu     sync.Mutex
	chip   *gpiod.Chip
	line   line
	closed bool
}

// Open requests the button line as an input.
func Open(cfg Config) (*Button, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	chip, err := gpiod.NewChip(cfg.Chip)
	if err != nil {
		return nil, fmt.Errorf("opening chip %s: %w", cfg.Chip, err)
	}

	l, err := chip.RequestLine(cfg.Line, cfg.options()...)
	if err != nil {
		chip.Close() //nolint:errcheck // Best effort on the error path
		return nil, fmt.Errorf("requesting line %d on %s: %w", cfg.Line, cfg.Chip, err)
	}

	return &Button{chip: chip, line: l}, nil
}

// Pressed reports the logical line level. ActiveLow is applied by the
// kernel, so 1 always means pressed.
func (b *Button) Pressed() (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false, fmt.Errorf("%w: closed", ErrInvalidLine)
	}

	v, err := b.line.Value()
	if err != nil {
		return false, fmt.Errorf("reading button: %w", err)
	}
	return v == 1, nil
}

// Close releases the line and the chip. It is safe to call more than once.
func (b *Button) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	var errs []error
	if err := b.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing line: %w", err))
	}
	if b.chip != nil {
		if err := b.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing chip: %w", err))
		}
	}
	return errors.Join(errs...)
}
