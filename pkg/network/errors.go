package network

import "errors"

// Sentinel errors. Mutators wrap them with context; test with errors.Is.
// A rejected mutation leaves the network unchanged.
var (
	ErrSelfConnection     = errors.New("node-end connected to itself")
	ErrDuplicateLaneStrip = errors.New("duplicate lane-strip")
	ErrInvalidTaper       = errors.New("lane shift cannot be realized")
	ErrIndexOutOfRange    = errors.New("lane index out of range")
	ErrForeignEntity      = errors.New("entity does not belong here")
	ErrDestroyed          = errors.New("entity destroyed")
	ErrUnknownNode        = errors.New("unknown node")
	ErrDuplicateNode      = errors.New("duplicate node")
	ErrInvalidLane        = errors.New("invalid lane offsets")
	ErrInvalidPose        = errors.New("invalid pose")
)
