package ledger

import "errors"

// ErrNotFound is wrapped into the error returned by Get*/Look up operations
// when the requested row is absent, letting the runtime translate it into a
// not-found signal without inspecting driver-specific error types.
var ErrNotFound = errors.New("ledger: not found")
