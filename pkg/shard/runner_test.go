package shard

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRunnerSerializesTurns(t *testing.T) {
	r := NewRunner(0)
	defer r.Close()

	var counter int
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.Execute(func() error {
				// racy if two turns ever overlap
				v := counter
				counter = v + 1
				return nil
			})
		}()
	}
	wg.Wait()
	got, err := Execute(r, func() (int, error) { return counter, nil })
	require.NoError(t, err)
	require.Equal(t, 50, got)
}

func TestRunnerPropagatesErrors(t *testing.T) {
	r := NewRunner(0)
	defer r.Close()

	boom := errors.New("boom")
	require.ErrorIs(t, r.Execute(func() error { return boom }), boom)

	v, err := Execute(r, func() (string, error) { return "ok", nil })
	require.NoError(t, err)
	require.Equal(t, "ok", v)
}

func TestRunnerClosedRejectsWork(t *testing.T) {
	r := NewRunner(0)
	r.Close()
	require.ErrorIs(t, r.Execute(func() error { return nil }), ErrRunnerClosed)
}

func TestScheduleSupersedes(t *testing.T) {
	r := NewRunner(0)
	defer r.Close()

	fired := make(chan string, 2)
	r.Schedule("job", 30*time.Millisecond, func() { fired <- "first" })
	r.Schedule("job", 10*time.Millisecond, func() { fired <- "second" })

	select {
	case got := <-fired:
		require.Equal(t, "second", got)
	case <-time.After(time.Second):
		t.Fatal("scheduled job never fired")
	}
	select {
	case got := <-fired:
		t.Fatalf("superseded job fired: %s", got)
	case <-time.After(80 * time.Millisecond):
	}
}

func TestScheduleCancel(t *testing.T) {
	r := NewRunner(0)
	defer r.Close()

	fired := make(chan struct{}, 1)
	r.Schedule("job", 20*time.Millisecond, func() { fired <- struct{}{} })
	r.Cancel("job")

	select {
	case <-fired:
		t.Fatal("cancelled job fired")
	case <-time.After(80 * time.Millisecond):
	}
}

func TestTwoPhaseCommitPath(t *testing.T) {
	r := NewRunner(0)
	defer r.Close()

	var trace []string
	res, err := Run(r, TwoPhase[int, string]{
		Prepare: func() (int, error) {
			trace = append(trace, "prepare")
			return 7, nil
		},
		External: func(p int) (string, error) {
			require.Equal(t, 7, p)
			trace = append(trace, "external")
			return "receipt", nil
		},
		Commit: func(p int, r string) error {
			trace = append(trace, "commit")
			return nil
		},
		Rollback: func(int, error) error {
			trace = append(trace, "rollback")
			return nil
		},
	})
	require.NoError(t, err)
	require.Equal(t, "receipt", res)
	require.Equal(t, []string{"prepare", "external", "commit"}, trace)
}

func TestTwoPhaseRollbackOnExternalFailure(t *testing.T) {
	r := NewRunner(0)
	defer r.Close()

	boom := errors.New("ledger down")
	var rolledBack bool
	_, err := Run(r, TwoPhase[int, string]{
		Prepare:  func() (int, error) { return 1, nil },
		External: func(int) (string, error) { return "", boom },
		Commit:   func(int, string) error { t.Fatal("commit after failure"); return nil },
		Rollback: func(p int, xerr error) error {
			require.ErrorIs(t, xerr, boom)
			rolledBack = true
			return nil
		},
	})
	require.ErrorIs(t, err, boom)
	require.True(t, rolledBack)
}

func TestTwoPhasePrepareFailureSkipsEverything(t *testing.T) {
	r := NewRunner(0)
	defer r.Close()

	boom := errors.New("not allowed")
	_, err := Run(r, TwoPhase[int, string]{
		Prepare:  func() (int, error) { return 0, boom },
		External: func(int) (string, error) { t.Fatal("external after prepare failure"); return "", nil },
		Commit:   func(int, string) error { t.Fatal("commit after prepare failure"); return nil },
		Rollback: func(int, error) error { t.Fatal("rollback after prepare failure"); return nil },
	})
	require.ErrorIs(t, err, boom)
}
