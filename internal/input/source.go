package input

// Source reads the raw button level.
type Source interface {
	// Pressed reports whether the button is currently held.
	Pressed() (bool, error)

	// Close releases the underlying line.
	Close() error
}

// NoneSource is a Source for nodes without a button. It never reports a
// press.
type NoneSource struct{}

// Pressed always returns false.
func (NoneSource) Pressed() (bool, error) { return false, nil }

// Close does nothing.
func (NoneSource) Close() error { return nil }
