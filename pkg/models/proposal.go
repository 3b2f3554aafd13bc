package models

import (
	"github.com/open-chat-labs/open-chat-sub005/pkg/types"
)

// ProposalContent is a governance proposal surfaced into a chat; votes
// are recorded on the message, one per user.
type ProposalContent struct {
	ProposalID types.ProposalID      `cbor:"p"`
	Title      string                `cbor:"t"`
	Summary    string                `cbor:"sm,omitempty"`
	Deadline   types.TimestampMillis `cbor:"dl,omitempty"`
	// Votes maps voter id to adopt (true) / reject (false).
	Votes map[types.UserID]bool `cbor:"v,omitempty"`
}

// RecordVote registers a vote for user, returning the previous vote and
// whether one already existed. Re-votes never overwrite.
func (p *ProposalContent) RecordVote(user types.UserID, adopt bool) (previous bool, voted bool) {
	if prev, ok := p.Votes[user]; ok {
		return prev, true
	}
	if p.Votes == nil {
		p.Votes = make(map[types.UserID]bool)
	}
	p.Votes[user] = adopt
	return false, false
}
