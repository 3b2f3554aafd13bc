package chat

import (
	"fmt"

	"github.com/open-chat-labs/open-chat-sub005/pkg/chat/events"
	"github.com/open-chat-labs/open-chat-sub005/pkg/chat/members"
	"github.com/open-chat-labs/open-chat-sub005/pkg/models"
	"github.com/open-chat-labs/open-chat-sub005/pkg/notify"
	"github.com/open-chat-labs/open-chat-sub005/pkg/store"
	"github.com/open-chat-labs/open-chat-sub005/pkg/telemetry"
	"github.com/open-chat-labs/open-chat-sub005/pkg/types"
)

// Chat wires one chat's event log and membership table behind a single
// authorization gate. Every operation checks the caller against the
// membership table first; state only changes after the gate passes, so
// a rejected call never half-mutates.
type Chat struct {
	store    *store.Store
	log      *events.Log
	members  *members.Table
	notifier notify.Notifier
}

// CreateArgs shape a new chat.
type CreateArgs struct {
	ID                         types.ChatID
	Name                       string
	Description                string
	Public                     bool
	HistoryVisibleToNewJoiners bool
	Creator                    types.UserID
	Now                        types.TimestampMillis
}

// Create builds a new chat with its creator as sole owner.
func Create(s *store.Store, n notify.Notifier, args CreateArgs) (*Chat, error) {
	if err := types.ValidateUserID(args.Creator); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalid, err)
	}
	if n == nil {
		n = notify.Nop{}
	}
	log, err := events.Create(s, models.ChatMeta{
		ID:                         args.ID,
		Name:                       args.Name,
		Description:                args.Description,
		Public:                     args.Public,
		HistoryVisibleToNewJoiners: args.HistoryVisibleToNewJoiners,
		Created:                    args.Now,
		LatestUpdate:               args.Now,
	})
	if err != nil {
		return nil, err
	}
	c := &Chat{store: s, log: log, members: members.NewTable(s, args.ID), notifier: n}
	if _, err := c.members.Add(members.AddArgs{
		User: args.Creator,
		Role: models.RoleOwner,
		Now:  args.Now,
	}); err != nil {
		return nil, err
	}
	if _, err := c.log.Push(events.PushArgs{
		Payload: models.EventPayload{MemberJoined: &models.MemberJoined{User: args.Creator}},
		Now:     args.Now,
	}); err != nil {
		return nil, err
	}
	return c, nil
}

// Open loads an existing chat. Soft-deleted chats look absent.
func Open(s *store.Store, n notify.Notifier, id types.ChatID) (*Chat, error) {
	log, err := events.Open(s, id)
	if err != nil {
		return nil, err
	}
	if log.Meta().Deleted {
		return nil, fmt.Errorf("chat %s: %w", id, models.ErrNotFound)
	}
	if n == nil {
		n = notify.Nop{}
	}
	return &Chat{store: s, log: log, members: members.NewTable(s, id), notifier: n}, nil
}

// ID returns the chat id.
func (c *Chat) ID() types.ChatID { return c.log.Chat() }

// Meta returns the chat's metadata record.
func (c *Chat) Meta() models.ChatMeta { return c.log.Meta() }

// Members exposes the membership table for read paths.
func (c *Chat) Members() *members.Table { return c.members }

// writeGate authorizes a state-changing call by user. Order matters:
// existence, frozen flag, membership, suspension, lapse.
func (c *Chat) writeGate(user types.UserID, now types.TimestampMillis) (*models.Member, error) {
	meta := c.log.Meta()
	if meta.Deleted {
		return nil, fmt.Errorf("chat %s: %w", meta.ID, models.ErrNotFound)
	}
	if meta.Frozen {
		return nil, fmt.Errorf("chat %s: %w", meta.ID, models.ErrChatFrozen)
	}
	m, err := c.members.Get(user)
	if err != nil {
		return nil, fmt.Errorf("user %s is not a member: %w", user, models.ErrNotAuthorized)
	}
	if m.IsSuspended(now) {
		return nil, fmt.Errorf("user %s: %w", user, models.ErrSuspended)
	}
	if m.Lapsed {
		return nil, fmt.Errorf("user %s access lapsed: %w", user, models.ErrNotAuthorized)
	}
	return m, nil
}

// visibilityFor resolves the caller's read floor: members use their join
// window, anyone may read a public chat from the start, everyone else
// is rejected.
func (c *Chat) visibilityFor(user types.UserID) (types.EventIndex, types.MessageIndex, error) {
	meta := c.log.Meta()
	if meta.Deleted {
		return 0, 0, fmt.Errorf("chat %s: %w", meta.ID, models.ErrNotFound)
	}
	if m, err := c.members.Get(user); err == nil {
		return m.MinVisibleEventIndex, m.MinVisibleMessageIndex, nil
	}
	if meta.Public {
		return 0, 0, nil
	}
	return 0, 0, fmt.Errorf("user %s may not read chat %s: %w", user, meta.ID, models.ErrNotAuthorized)
}

func (c *Chat) published(idx types.EventIndex, root types.EventIndex, kind models.EventKind, sender types.UserID, now types.TimestampMillis) {
	telemetry.EventsAppended.Inc()
	c.notifier.Notify(notify.Event{
		Chat:       c.log.Chat(),
		EventIndex: idx,
		ThreadRoot: root,
		Kind:       string(kind),
		Sender:     sender,
		Timestamp:  now,
	})
}
