package network

import (
	"errors"
	"fmt"
)

// Domain errors for network supervision.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrAssociation is returned by Connect when the initial association
	// fails. It is always combined with one of the cause errors below.
	ErrAssociation = errors.New("network: association failed")

	// ErrAssociationTimeout means the radio did not complete association
	// within the connect timeout.
	ErrAssociationTimeout = errors.New("network: association timed out")

	// ErrAuthRejected means the access point rejected the passphrase.
	ErrAuthRejected = errors.New("network: authentication rejected")

	// ErrRadioFault covers driver and hardware failures.
	ErrRadioFault = errors.New("network: radio fault")

	// ErrLinkLoss is recorded when an established link drops.
	// It is recoverable and triggers reassociation.
	ErrLinkLoss = errors.New("network: link lost")

	// ErrInvalidCredentials is returned when required credentials are missing.
	ErrInvalidCredentials = errors.New("network: invalid credentials")
)

// classify maps an arbitrary radio error onto one of the cause errors.
// Unknown errors are treated as radio faults.
func classify(err error) error {
	switch {
	case errors.Is(err, ErrAssociationTimeout),
		errors.Is(err, ErrAuthRejected),
		errors.Is(err, ErrRadioFault),
		errors.Is(err, ErrInvalidCredentials):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrRadioFault, err)
	}
}
