// Package lock provides keyed mutual exclusion for in-process and multi-replica deployments.
package lock

import "errors"

// ErrTimeout is returned when a key stays held for longer than the configured wait.
var ErrTimeout = errors.New("lock wait timed out")
