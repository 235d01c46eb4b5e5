package match

import "time"

// now is the one place the registry reads the wall clock, so tests can
// reason about timestamps without depending on real elapsed time.
func now() time.Time { return time.Now() }

const timeLayout = time.RFC3339
