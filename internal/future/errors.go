package future

import "errors"

// ErrNotResolved is returned by Result when the future has not been
// completed or failed yet.
var ErrNotResolved = errors.New("future is not resolved")
