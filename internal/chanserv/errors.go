package chanserv

import "github.com/pkg/errors"

// Failures are reported per Action through Notice.Err and never abort the
// scheduler.
var (
	ErrResolutionFailure     = errors.New("cannot resolve target")
	ErrTimeout               = errors.New("operation timed out")
	ErrDuplicateEntry        = errors.New("already listed")
	ErrUnsupportedFeature    = errors.New("unsupported feature")
	ErrInsufficientPrivilege = errors.New("insufficient privilege")
	ErrNoIPAddress           = errors.New("no IP address available")
	ErrNotAuthenticated      = errors.New("target not identified")

	// Request building
	ErrInvalidTarget      = errors.New("invalid target")
	ErrInvalidChannel     = errors.New("invalid channel")
	ErrNotEnoughArguments = errors.New("not enough arguments")
	ErrUnknownOperation   = errors.New("unknown operation")
)
