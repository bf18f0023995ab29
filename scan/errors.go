package scan

import (
	"errors"
	"fmt"
)

// ErrInvalidOptions is the root of the invalid-argument taxonomy; every
// scan option validation failure matches it via errors.Is.
var ErrInvalidOptions = errors.New("invalid scan options")

var (
	ErrMissingURL     = fmt.Errorf("%w: missing mandatory target url", ErrInvalidOptions)
	ErrInvalidSpawns  = fmt.Errorf("%w: grid scans require a positive spawn count", ErrInvalidOptions)
	ErrRestrictedOpts = fmt.Errorf("%w: path restriction cannot be combined with distributed scans", ErrInvalidOptions)

	// Provisioning specific
	ErrProbeExhausted = errors.New("liveness probe retry budget exhausted")
	ErrSlaveRejected  = errors.New("slave rejected the liveness probe")

	// Engine specific
	ErrNotScanning    = errors.New("no scan is running")
	ErrAlreadyRunning = errors.New("engine is already running")
	ErrUnknownModule  = errors.New("unknown module name")
	ErrUnknownPlugin  = errors.New("unknown plugin name")
	ErrUnknownFormat  = errors.New("unknown report format")
)
