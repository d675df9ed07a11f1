package router

import "errors"

var (
	// ErrNoCapableAgent is returned when no agent satisfies min_score for
	// the requested capability.
	ErrNoCapableAgent = errors.New("router: no capable agent found")

	// ErrVersionRequirement wraps an invalid version requirement string.
	ErrVersionRequirement = errors.New("router: invalid version requirement")
)
