package discovery

// modelNotFoundError signals a repository with no recognizable model files.
type modelNotFoundError struct{ repoID string }

func (e modelNotFoundError) Error() string { return "no model files found in " + e.repoID }

// ErrModelNotFound constructs a modelNotFoundError.
func ErrModelNotFound(repoID string) error { return modelNotFoundError{repoID: repoID} }

// IsModelNotFound reports whether err indicates a repository without model files.
func IsModelNotFound(err error) bool {
	_, ok := err.(modelNotFoundError)
	return ok
}
