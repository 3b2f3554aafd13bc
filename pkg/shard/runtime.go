package shard

import (
	"github.com/open-chat-labs/open-chat-sub005/pkg/chat"
	"github.com/open-chat-labs/open-chat-sub005/pkg/ledger"
	"github.com/open-chat-labs/open-chat-sub005/pkg/notify"
	"github.com/open-chat-labs/open-chat-sub005/pkg/remote"
	"github.com/open-chat-labs/open-chat-sub005/pkg/store"
	"github.com/open-chat-labs/open-chat-sub005/pkg/types"
)

// Runtime is one shard's collaborator set, passed explicitly to every
// flow instead of living in package globals. Everything that touches
// shard state goes through Runner turns; Ledger and Peer are the only
// members safe to call between turns.
type Runtime struct {
	Store    *store.Store
	Clock    Clock
	IDs      IDSource
	Notifier notify.Notifier
	Ledger   ledger.Client
	Peer     remote.PeerClient

	runner *Runner
}

// Config assembles a Runtime; zero fields get working defaults.
type Config struct {
	Store      *store.Store
	Clock      Clock
	IDs        IDSource
	Notifier   notify.Notifier
	Ledger     ledger.Client
	Peer       remote.PeerClient
	TurnBuffer int
}

// NewRuntime builds a Runtime and starts its runner.
func NewRuntime(cfg Config) *Runtime {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.IDs == nil {
		cfg.IDs = UUIDSource{}
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.Nop{}
	}
	return &Runtime{
		Store:    cfg.Store,
		Clock:    cfg.Clock,
		IDs:      cfg.IDs,
		Notifier: cfg.Notifier,
		Ledger:   cfg.Ledger,
		Peer:     cfg.Peer,
		runner:   NewRunner(cfg.TurnBuffer),
	}
}

// Runner exposes the turn executor for flows composed outside this
// package (the GC sweep, ops handlers).
func (rt *Runtime) Runner() *Runner { return rt.runner }

// OpenChat loads a chat bound to this runtime's notifier. Must be
// called inside a turn.
func (rt *Runtime) OpenChat(id types.ChatID) (*chat.Chat, error) {
	return chat.Open(rt.Store, rt.Notifier, id)
}

// CreateChat creates a chat as one turn.
func (rt *Runtime) CreateChat(args chat.CreateArgs) (*chat.Chat, error) {
	if args.Now == 0 {
		args.Now = rt.Clock.Now()
	}
	return Execute(rt.runner, func() (*chat.Chat, error) {
		return chat.Create(rt.Store, rt.Notifier, args)
	})
}

// WithChat runs fn against chat id as one turn.
func (rt *Runtime) WithChat(id types.ChatID, fn func(*chat.Chat) error) error {
	return rt.runner.Execute(func() error {
		c, err := rt.OpenChat(id)
		if err != nil {
			return err
		}
		return fn(c)
	})
}

// Close stops the runner and closes the notifier.
func (rt *Runtime) Close() {
	rt.runner.Close()
	_ = rt.Notifier.Close()
}
