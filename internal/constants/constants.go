// Package constants holds tunable defaults shared across shmmpi packages.
package constants

import "time"

// Cell and channel sizing
const (
	// DefaultCellBuf is the default payload capacity of a single cell, in
	// bytes. Messages larger than this are fragmented across multiple
	// cell handoffs by the progress engine.
	DefaultCellBuf = 64 * 1024

	// CellsPerChannel is the number of cells making up one directed
	// channel. Two cells let the progress engine fill one while the
	// peer drains the other.
	CellsPerChannel = 2

	// CacheLineSize is the assumed cache line width used to pad Cell so
	// consecutive cells in a ShmPlane never false-share.
	CacheLineSize = 64
)

// Request and queue sizing
const (
	// DefaultSlotCapacity is the default number of live requests a
	// RequestSlots table can hold per rank, per queue (send/recv/unexpected).
	DefaultSlotCapacity = 16

	// TagBits is the width of the user-tag field in the namespaced wire
	// tag; the bits above it carry the communicator's key.
	TagBits = 15

	// TagMask isolates the user-tag bits of a namespaced wire tag.
	TagMask = (1 << TagBits) - 1

	// MaxUserTag is the largest tag value a caller may pass to
	// Send/Recv/Isend/Irecv.
	MaxUserTag = TagMask

	// CommKeyInc is the amount CommGroup bumps its running key
	// generator by for every new communicator created (dup, split,
	// COMM_SELF, COMM_WORLD), leaving room between generations.
	CommKeyInc = 2
)

// Environment variables recognized by Init and the launcher.
const (
	EnvSize     = "SHMMPI_SIZE"
	EnvUseNT    = "SHMMPI_USE_NT"
	EnvRank     = "SHMMPI_RANK"
	EnvShmKey   = "SHMMPI_SHMKEY"
	EnvLaunched = "SHMMPI_LAUNCHED"
)

// Progress engine pacing
const (
	// ProgressSpinBudget bounds how many consecutive no-progress polls
	// the progress engine's mid-message cell wait performs before
	// yielding to the Go scheduler. Keeping this bounded (rather than a
	// tight infinite spin) keeps CI and oversubscribed test hosts
	// responsive.
	ProgressSpinBudget = 4096

	// ProgressYield is how long a blocking Wait/Waitall sleeps after
	// each progress pass that leaves its request incomplete.
	ProgressYield = 50 * time.Microsecond
)

// AutoAssignShmKey indicates the runtime should pick an unused SysV key
// rather than attach to one the caller names.
const AutoAssignShmKey = 0
