package rate

import "errors"

// ErrRateLimited is returned by callers that turn a denied [Decision] into an error.
var ErrRateLimited = errors.New("rate limited")
