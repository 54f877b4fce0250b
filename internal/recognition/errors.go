package recognition

import "errors"

var (
	// ErrModelUnavailable means the detection/embedding capability is not
	// loaded or unreachable. Retryable via the model loader's backoff; once
	// the loader gives up it is terminal for the session.
	ErrModelUnavailable = errors.New("recognition: model unavailable")

	// ErrDimensionMismatch means a descriptor of unexpected length reached
	// the gallery. Data-integrity bug: never retried, the single comparison
	// is rejected without aborting the match pass.
	ErrDimensionMismatch = errors.New("recognition: descriptor dimension mismatch")

	// ErrBusy means a recognition pass is already in flight for the session.
	ErrBusy = errors.New("recognition: pass already in flight")

	// ErrCameraUnavailable means the media source could not be acquired.
	ErrCameraUnavailable = errors.New("recognition: camera unavailable")

	// ErrSessionStopped means the session was stopped or reset while the
	// pass was in flight; its result must be discarded.
	ErrSessionStopped = errors.New("recognition: session stopped")
)
