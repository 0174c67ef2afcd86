package errors

import "fmt"

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	ErrInvalidName   = fmt.Errorf("invalid display name")
	ErrNameTaken     = fmt.Errorf("display name already taken")
	ErrSinkClosed    = fmt.Errorf("sink is closed")
	ErrLoginRejected = fmt.Errorf("login rejected")
	ErrLoginTimeout  = fmt.Errorf("login timed out")
	ErrNotLoggedIn   = fmt.Errorf("not logged in")

	ErrFrameTooLarge      = fmt.Errorf("frame exceeds maximum size")
	ErrUnsupportedVersion = fmt.Errorf("unsupported protocol version")
	ErrMalformedRecord    = fmt.Errorf("malformed record")

	ErrAlreadyRunning  = fmt.Errorf("server already running")
	ErrNotRunning      = fmt.Errorf("server not running")
	ErrStopping        = fmt.Errorf("server is still stopping")
	ErrShutdownTimeout = fmt.Errorf("shutdown timed out, sessions were closed forcibly")

	ErrMissingSecret   = fmt.Errorf("admin secret is not configured")
	ErrEmptyNotice     = fmt.Errorf("notice text is empty")
	ErrJournalDisabled = fmt.Errorf("presence journal is disabled")
)
