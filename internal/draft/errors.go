package draft

import "errors"

var (
	// ErrNotFound is returned when a draft session does not exist or
	// belongs to a different user.
	ErrNotFound = errors.New("draft session not found")

	// ErrBusy is returned when an operation is rejected because a
	// generation call is already in flight for the session. Callers
	// retry after the current operation settles; requests are never
	// queued.
	ErrBusy = errors.New("a generation operation is already in progress")

	// ErrHookIndexOutOfRange is returned by Select for an index outside
	// the candidate list.
	ErrHookIndexOutOfRange = errors.New("hook index out of range")

	// ErrNoImage is returned when an image operation needs an uploaded
	// image and none is present.
	ErrNoImage = errors.New("no uploaded image")
)

// ValidationError reports a precondition failure on user input, such as
// an empty topic. It never involves the generation service.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Reason
}

// Image upload rejection reasons, one sentinel per distinct failure so
// the API can map each to a stable error code.
var (
	ErrInvalidImageFormat = errors.New("unsupported image format")
	ErrImageTooLarge      = errors.New("image exceeds the maximum allowed size")
	ErrImageTooSmall      = errors.New("image dimensions are below the minimum")
	ErrImageDecode        = errors.New("image could not be decoded")
)
