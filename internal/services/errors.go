package services

// Typed errors let handlers map failures to HTTP statuses in one place
// without string matching.

// ValidationError reports bad request input. Fields carries per-field
// messages when more than one thing is wrong.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string { return e.Message }

// NotFoundError reports a missing resource.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string { return e.Resource + " not found" }

// ForbiddenError reports an authenticated user touching a resource they do
// not own.
type ForbiddenError struct {
	Message string
}

func (e *ForbiddenError) Error() string { return e.Message }

// UnauthorizedError reports a failed authentication step.
type UnauthorizedError struct {
	Message string
}

func (e *UnauthorizedError) Error() string { return e.Message }

// InvalidUpstreamResponseError reports a well-formed provider reply that is
// semantically unusable, such as a completion with no choices.
type InvalidUpstreamResponseError struct {
	Message string
}

func (e *InvalidUpstreamResponseError) Error() string { return e.Message }
