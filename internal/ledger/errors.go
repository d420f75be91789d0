package ledger

import "errors"

// Ledger errors.
var (
	// ErrUnknownFlip is returned when an operation references a flip ID
	// the ledger does not track.
	ErrUnknownFlip = errors.New("unknown flip")

	// ErrTerminalFlip is returned when an operation targets a flip that
	// has already reached a final status.
	ErrTerminalFlip = errors.New("flip already terminal")
)
