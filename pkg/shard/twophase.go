package shard

import (
	"github.com/open-chat-labs/open-chat-sub005/pkg/logger"
)

// TwoPhase brackets an external call with shard turns. State written
// between the phases must be recoverable: Prepare records intent (a
// reservation) in one turn, External runs outside any turn and may take
// arbitrarily long, then Commit or Rollback runs in a fresh turn
// against whatever the state looks like by then. Neither Commit nor
// Rollback may assume nothing ran in between; they re-check.
type TwoPhase[P, R any] struct {
	Prepare  func() (P, error)
	External func(P) (R, error)
	Commit   func(P, R) error
	Rollback func(P, error) error
}

// Run drives the phases on r. A Prepare error aborts with nothing
// written. An External error triggers Rollback and returns the external
// error; a Rollback failure is logged, the reservation then stands
// until a later sweep or retry resolves it.
func Run[P, R any](r *Runner, tp TwoPhase[P, R]) (R, error) {
	var zero R

	p, err := Execute(r, tp.Prepare)
	if err != nil {
		return zero, err
	}

	res, xerr := tp.External(p)
	if xerr != nil {
		if tp.Rollback != nil {
			if rbErr := r.Execute(func() error { return tp.Rollback(p, xerr) }); rbErr != nil {
				logger.Error("two_phase_rollback_failed", "external_error", xerr, "rollback_error", rbErr)
			}
		}
		return zero, xerr
	}

	if err := r.Execute(func() error { return tp.Commit(p, res) }); err != nil {
		return zero, err
	}
	return res, nil
}
