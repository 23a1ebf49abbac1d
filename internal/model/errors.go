package model

import (
	"errors"
)

var (
	// ErrInvalidPort is returned when a port can't be coerced to an integer in [0, 65535]
	ErrInvalidPort = errors.New("port number must be coercible to an integer")
	// ErrNotLaunchable is returned by a start of a server without launch command
	ErrNotLaunchable = errors.New("no launch command configured")
	// ErrUnreachableService is returned when an operation needs a live server and none answers
	ErrUnreachableService = errors.New("service is not reachable")
	// ErrUpstreamHTTP wraps failures of HTTP calls to a supervised server
	ErrUpstreamHTTP = errors.New("upstream http error")
	// ErrInvalidPID is returned for a process id which is not a positive integer
	ErrInvalidPID = errors.New("invalid process id")
	// ErrNotSupported is returned when a server lacks the capability an operation needs
	ErrNotSupported = errors.New("not supported")
	// ErrNotFound is returned by a store for an unknown record
	ErrNotFound = errors.New("not found")
)
