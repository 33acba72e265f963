// Package mapval decides whether a downloaded track may enter a
// challenge session: it must be unplayed and, when the unlimiter ban is
// active, built entirely from stock content.
package mapval

import (
	"fmt"

	"github.com/rmchallenge/companion/internal/gbx"
)

// Reason classifies why a track was rejected.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonAlreadyPlayed
	ReasonUnlimiter
	ReasonUnknownSize
	ReasonUnknownBlock
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "ok"
	case ReasonAlreadyPlayed:
		return "already played"
	case ReasonUnlimiter:
		return "unlimiter content"
	case ReasonUnknownSize:
		return "non-stock map size"
	case ReasonUnknownBlock:
		return "non-stock block"
	}
	return "unknown"
}

// Verdict is the outcome of validating one track. BlockName is set only
// for ReasonUnknownBlock and names the first offending block.
type Verdict struct {
	OK        bool
	Reason    Reason
	BlockName string
}

// Message renders the verdict for status display.
func (v Verdict) Message() string {
	if v.OK {
		return "map accepted"
	}
	if v.Reason == ReasonUnknownBlock {
		return fmt.Sprintf("map rejected: block %q is not stock content", v.BlockName)
	}
	return "map rejected: " + v.Reason.String()
}

// PlayedIndex is the slice of the autosave registry the validator
// needs: whether a map identifier has already been driven.
type PlayedIndex interface {
	Has(uid string) bool
}

// Validator rejects tracks that are ineligible for a session. It holds
// no mutable state of its own; each call reads the current registry
// snapshot.
type Validator struct {
	played      PlayedIndex
	noUnlimiter bool
}

func NewValidator(played PlayedIndex, noUnlimiter bool) *Validator {
	return &Validator{played: played, noUnlimiter: noUnlimiter}
}

// Validate checks one decoded track. The already-played check always
// applies; the content checks only when the unlimiter ban is active.
func (v *Validator) Validate(rec *gbx.TrackRecord) Verdict {
	if v.played.Has(rec.UID) {
		return Verdict{Reason: ReasonAlreadyPlayed}
	}

	if !v.noUnlimiter {
		return Verdict{OK: true}
	}

	if rec.HasUnlimiter {
		return Verdict{Reason: ReasonUnlimiter}
	}
	if rec.Size == nil || !knownSize(rec.Environment, *rec.Size) {
		return Verdict{Reason: ReasonUnknownSize}
	}
	for _, name := range rec.Blocks {
		if !knownBlock(rec.Environment, name) {
			return Verdict{Reason: ReasonUnknownBlock, BlockName: name}
		}
	}
	return Verdict{OK: true}
}
