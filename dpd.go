// Package dpd is the top-level facade re-exporting the types an embedder
// needs to build or test a role without reaching into internal/*
// directly: the process and configuration data model, and the profile
// state enum. Grounded on provisr's own root package, which re-exports its
// internal process.Spec as provisr.Spec via type aliases for the same
// reason.
package dpd

import (
	"github.com/loykin/dpd/internal/config"
	"github.com/loykin/dpd/internal/dpdproc"
	"github.com/loykin/dpd/internal/profile"
)

// ProcessSpec is the declarative description of one managed process
// (spec.md §3).
type ProcessSpec = dpdproc.ProcessSpec

// Envelope is the distributed JSON configuration document (spec.md §6).
type Envelope = config.Envelope

// State is a Profile's lifecycle state (spec.md §4.1).
type State = profile.State

// Profile lifecycle states, re-exported for callers that want to inspect
// or assert on worker state without importing internal/profile.
const (
	Waiting           = profile.Waiting
	Running           = profile.Running
	AdminDown         = profile.AdminDown
	AdminNotRestarted = profile.AdminNotRestarted
	AdminNeedRestart  = profile.AdminNeedRestart
	ErrorDown         = profile.ErrorDown
	ErrorUp           = profile.ErrorUp
)

// MaxStarts is the restart-throttle ceiling (spec.md §3, §8 property 1).
const MaxStarts = profile.MaxStarts
