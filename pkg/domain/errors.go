package domain

import "errors"

// ErrNotStarted is returned when Submit or Await is called before Start.
var ErrNotStarted = errors.New("instance not started")

// ErrAlreadyStarted is returned when Start is called twice on the same
// instance or chain.
var ErrAlreadyStarted = errors.New("already started")

// ErrStopped is returned when Submit is called after Stop.
var ErrStopped = errors.New("instance stopped")

// ErrAwaitTimeout is the distinguishable timeout indicator returned by Await.
// It times out the caller only; the instance keeps running until stopped.
var ErrAwaitTimeout = errors.New("await timed out")

// ErrMachineNotFound is returned by machine loaders for unknown identifiers.
var ErrMachineNotFound = errors.New("machine not found")

// ErrUnknownAction is returned at start time when a state references an
// action name absent from the registry.
var ErrUnknownAction = errors.New("unknown action")
