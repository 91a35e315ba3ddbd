package agent

import "errors"

var (
	ErrTransport    = errors.New("agent unreachable")
	ErrRateLimited  = errors.New("agent rate limited")
	ErrUpstreamAuth = errors.New("agent rejected api key")
	ErrEmptyReply   = errors.New("agent returned an empty reply")
	// ErrParseWorkout is terminal: local parsing and the single
	// re-extraction attempt both failed.
	ErrParseWorkout = errors.New("failed to parse workout")
)
