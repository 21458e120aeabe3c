package backend

// backendUnavailableError signals a candidate that failed pre-flight,
// construction, or post-construction verification. Recovered locally by
// advancing the fallback chain.
type backendUnavailableError struct {
	kind   string
	reason string
}

func (e backendUnavailableError) Error() string {
	return "backend " + e.kind + " unavailable: " + e.reason
}

// ErrBackendUnavailable constructs a backendUnavailableError.
func ErrBackendUnavailable(kind, reason string) error {
	return backendUnavailableError{kind: kind, reason: reason}
}

// IsBackendUnavailable reports whether err indicates a skippable candidate.
func IsBackendUnavailable(err error) bool {
	_, ok := err.(backendUnavailableError)
	return ok
}

// noUsableBackendError is fatal: even the CPU terminal fallback failed.
type noUsableBackendError struct{ reason string }

func (e noUsableBackendError) Error() string { return "no usable backend: " + e.reason }

// ErrNoUsableBackend constructs a noUsableBackendError.
func ErrNoUsableBackend(reason string) error { return noUsableBackendError{reason: reason} }

// IsNoUsableBackend reports whether err indicates total backend failure.
func IsNoUsableBackend(err error) bool {
	_, ok := err.(noUsableBackendError)
	return ok
}
