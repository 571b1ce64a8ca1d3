package harness

import "errors"

var (
	ErrSentinelNotFound  = errors.New("sentinel instruction not found in code image")
	ErrAmbiguousSentinel = errors.New("sentinel instruction found more than once")
	ErrImplausibleImage  = errors.New("implausible code image")
	ErrUnpublishedImage  = errors.New("code image patched but not published")
	ErrBootstrapTimeout  = errors.New("state seeding bootstrap did not finish")
	ErrBootstrapFailed   = errors.New("state seeding bootstrap stopped unexpectedly")
	ErrUnknownField      = errors.New("unknown snapshot field")
	ErrAborted           = errors.New("run aborted")
)
