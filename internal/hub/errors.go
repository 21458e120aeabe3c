package hub

// notFoundError signals that a repository (or revision) does not exist.
type notFoundError struct{ repoID string }

func (e notFoundError) Error() string { return "repository not found: " + e.repoID }

// ErrNotFound returns an error for a missing repository. Never retried.
func ErrNotFound(repoID string) error { return notFoundError{repoID: repoID} }

// IsNotFound reports whether err indicates a missing repository.
func IsNotFound(err error) bool {
	_, ok := err.(notFoundError)
	return ok
}

// authRequiredError signals a gated or private repository without credentials.
type authRequiredError struct{ repoID string }

func (e authRequiredError) Error() string {
	return "authorization required for " + e.repoID +
		": supply a hub access token via the HF_TOKEN environment variable"
}

// ErrAuthRequired returns an error for a gated/private repository.
func ErrAuthRequired(repoID string) error { return authRequiredError{repoID: repoID} }

// IsAuthRequired reports whether err indicates missing credentials.
func IsAuthRequired(err error) bool {
	_, ok := err.(authRequiredError)
	return ok
}
