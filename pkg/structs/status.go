package structs

import (
	"strings"
)

type Status string

const (
	// transient states
	QUEUED  Status = "queued"
	RUNNING Status = "running"
	PAUSED  Status = "paused"

	// end states
	COMPLETE Status = "complete"
	FAILED   Status = "failed"
	STOPPED  Status = "stopped"
)

func IsFinalStatus(status Status) bool {
	switch status {
	case COMPLETE, FAILED, STOPPED:
		return true
	default:
		return false
	}
}

func ToStatus(s string) Status {
	switch strings.ToLower(s) {
	case "queued":
		return QUEUED
	case "running":
		return RUNNING
	case "paused":
		return PAUSED
	case "complete":
		return COMPLETE
	case "failed":
		return FAILED
	case "stopped":
		return STOPPED
	default:
		return ""
	}
}

// CanTransition reports whether a job may move from one status to another.
// Final states never move.
func CanTransition(from, to Status) bool {
	if IsFinalStatus(from) {
		return false
	}
	switch to {
	case QUEUED:
		return from == PAUSED
	case RUNNING:
		return from == QUEUED || from == RUNNING
	case PAUSED:
		return from == QUEUED || from == RUNNING
	case COMPLETE, FAILED:
		return from == RUNNING
	case STOPPED:
		return from == QUEUED || from == RUNNING || from == PAUSED
	}
	return false
}

// MergeStatus resolves the status written by a finishing step against the
// status currently persisted, which a control command may have changed while
// the step ran.
//
// A stop always wins. A step that finished the job (complete / failed) beats
// a pause, otherwise a pause sticks.
func MergeStatus(persisted, proposed Status) Status {
	switch {
	case persisted == STOPPED:
		return STOPPED
	case IsFinalStatus(persisted):
		return persisted
	case IsFinalStatus(proposed):
		return proposed
	case persisted == PAUSED:
		return PAUSED
	}
	return proposed
}
