package domain

import (
	"context"
	"errors"
)

// Flag names a runtime toggle read by reactors.
type Flag string

const (
	// KeepMembersInSlackAndEmail leaves lapsed members in the workspace.
	KeepMembersInSlackAndEmail Flag = "keep_members_in_slack_and_email"
	// NeedIDCheckGetsAddedToSlackAndEmail promotes need-id-check members
	// straight to regular members instead of the restricted invite.
	NeedIDCheckGetsAddedToSlackAndEmail Flag = "need_id_check_gets_added_to_slack_and_email"
)

// Flags lists every known flag.
func Flags() []Flag {
	return []Flag{
		KeepMembersInSlackAndEmail,
		NeedIDCheckGetsAddedToSlackAndEmail,
	}
}

func (f Flag) Known() bool {
	for _, known := range Flags() {
		if f == known {
			return true
		}
	}
	return false
}

// Provider answers flag lookups. Unknown flags are disabled.
type Provider interface {
	IsEnabled(flag Flag) bool
}

// Service is the operator-facing view of the flags.
type Service interface {
	Provider
	Snapshot() map[Flag]bool
	Set(ctx context.Context, flag Flag, enabled bool) error
}

var (
	ErrUnknownFlag = errors.New("unknown_flag")
)
