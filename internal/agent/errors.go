package agent

import "errors"

// ErrIterationLimit is returned when a single request's tool loop exceeds
// MAX_ITERATIONS (spec.md §4.3: bounded at 25 tool-call rounds per request)
// instead of the loop running forever against a provider that always
// returns tool_use.
var ErrIterationLimit = errors.New("ITERATION_LIMIT")
