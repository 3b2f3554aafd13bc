package events

import (
	"fmt"

	"github.com/open-chat-labs/open-chat-sub005/pkg/logger"
	"github.com/open-chat-labs/open-chat-sub005/pkg/models"
	"github.com/open-chat-labs/open-chat-sub005/pkg/types"
)

// RegisterVote records user's vote on the proposal carried by message
// id. A user votes at most once; a second vote returns ErrAlreadyVoted
// and leaves the original in place. Votes after the proposal deadline
// return ErrExpired.
func (l *Log) RegisterVote(id types.MessageID, user types.UserID, adopt bool, now types.TimestampMillis) error {
	_, _, err := l.updateMessage(id, now, func(msg *models.Message, _ *models.MessageLocator) (mutation, error) {
		if msg.Deleted != nil {
			return mutation{}, fmt.Errorf("message %s deleted: %w", id, models.ErrNotFound)
		}
		p := msg.Content.Proposal
		if p == nil {
			return mutation{}, fmt.Errorf("%w: message %s carries no proposal", models.ErrInvalid, id)
		}
		if p.Deadline != 0 && now >= p.Deadline {
			return mutation{}, fmt.Errorf("proposal %d deadline passed: %w", p.ProposalID, models.ErrExpired)
		}
		if prev, voted := p.RecordVote(user, adopt); voted {
			return mutation{}, fmt.Errorf("previous vote adopt=%v: %w", prev, models.ErrAlreadyVoted)
		}
		return mutation{audit: &models.EventPayload{
			ProposalVote: &models.ProposalVoteEvent{
				User: user, Message: id, Proposal: p.ProposalID, Adopt: adopt,
			},
		}}, nil
	})
	if err != nil {
		return err
	}
	logger.Info("proposal_vote_recorded", "chat", l.chat, "message", id, "user", user, "adopt", adopt)
	return nil
}
