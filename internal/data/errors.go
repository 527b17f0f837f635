package data

import "errors"

// ErrJobNotFound is returned when a job record is not tracked by the store.
// A missing record is indistinguishable from "job never tracked"; there is no
// tombstone.
var ErrJobNotFound = errors.New("job not found")
