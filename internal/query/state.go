package query

import "time"

// State is a snapshot of a cached read.
type State[T any] struct {
	Data      T
	HasData   bool
	IsLoading bool
	IsFetched bool
	Err       error
	UpdatedAt time.Time
}

type Options struct {
	// RefetchInterval marks data older than the interval as stale and keeps the key
	// polled in the background while it is being read. Zero disables both.
	RefetchInterval time.Duration
}
