package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronoeffector/orchestrator/agents"
	"github.com/chronoeffector/orchestrator/consensus"
	"github.com/chronoeffector/orchestrator/core"
	"github.com/chronoeffector/orchestrator/registry"
	"github.com/chronoeffector/orchestrator/staking"
)

type stubAgent struct {
	execute func(ctx context.Context, ec core.Context) (any, error)
}

func (a *stubAgent) Execute(ctx context.Context, ec core.Context) (any, error) {
	if a.execute != nil {
		return a.execute(ctx, ec)
	}
	return "ok", nil
}

func (a *stubAgent) Validate() bool { return true }

func (a *stubAgent) Describe() []string { return []string{"testing"} }

type fixture struct {
	ledger    *staking.Ledger
	registry  *registry.Registry
	scheduler *Scheduler
}

func newFixture(t *testing.T, panel *consensus.Panel, timeout time.Duration) *fixture {
	t.Helper()
	ledger := staking.NewLedger()
	reg := registry.NewRegistry(ledger, 100, nil)
	if panel == nil {
		panel = consensus.NewPanel(nil, 0)
	}
	return &fixture{
		ledger:    ledger,
		registry:  reg,
		scheduler: NewScheduler(reg, panel, nil, timeout),
	}
}

func (f *fixture) addActiveAgent(t *testing.T, id string, agent core.Agent) {
	t.Helper()
	require.NoError(t, f.registry.Register(id, agent, ""))
	require.NoError(t, f.ledger.Deposit(id, 150))
	require.NoError(t, f.registry.Activate(id))
}

func TestEnqueueRequiresRegisteredAgent(t *testing.T) {
	f := newFixture(t, nil, 0)

	_, err := f.scheduler.Enqueue("missing", nil, nil)
	assert.ErrorIs(t, err, core.ErrAgentNotFound)
}

func TestRunOnceDispatchesDueTasksInTimeOrder(t *testing.T) {
	f := newFixture(t, nil, 0)

	var order []string
	f.addActiveAgent(t, "a1", &stubAgent{
		execute: func(_ context.Context, ec core.Context) (any, error) {
			order = append(order, ec["label"].(string))
			return "ok", nil
		},
	})

	earlier := time.Now().Add(-2 * time.Minute)
	later := time.Now().Add(-time.Minute)

	// Enqueued out of order on purpose.
	_, err := f.scheduler.Enqueue("a1", core.Context{"label": "second"}, &later)
	require.NoError(t, err)
	_, err = f.scheduler.Enqueue("a1", core.Context{"label": "first"}, &earlier)
	require.NoError(t, err)

	records := f.scheduler.RunOnce(context.Background())
	require.Len(t, records, 2)
	assert.Equal(t, []string{"first", "second"}, order)
	assert.Equal(t, 0, f.scheduler.Pending())
}

func TestImmediateTasksRunBeforeTimedOnes(t *testing.T) {
	f := newFixture(t, nil, 0)

	var order []string
	f.addActiveAgent(t, "a1", &stubAgent{
		execute: func(_ context.Context, ec core.Context) (any, error) {
			order = append(order, ec["label"].(string))
			return "ok", nil
		},
	})

	past := time.Now().Add(-time.Minute)
	_, err := f.scheduler.Enqueue("a1", core.Context{"label": "timed"}, &past)
	require.NoError(t, err)
	_, err = f.scheduler.Enqueue("a1", core.Context{"label": "immediate"}, nil)
	require.NoError(t, err)

	f.scheduler.RunOnce(context.Background())
	assert.Equal(t, []string{"immediate", "timed"}, order)
}

func TestTiesBreakByEnqueueOrder(t *testing.T) {
	f := newFixture(t, nil, 0)

	var order []string
	f.addActiveAgent(t, "a1", &stubAgent{
		execute: func(_ context.Context, ec core.Context) (any, error) {
			order = append(order, ec["label"].(string))
			return "ok", nil
		},
	})

	for _, label := range []string{"one", "two", "three"} {
		_, err := f.scheduler.Enqueue("a1", core.Context{"label": label}, nil)
		require.NoError(t, err)
	}

	f.scheduler.RunOnce(context.Background())
	assert.Equal(t, []string{"one", "two", "three"}, order)
}

func TestFutureTasksStayPending(t *testing.T) {
	f := newFixture(t, nil, 0)
	f.addActiveAgent(t, "a1", &stubAgent{})

	future := time.Now().Add(time.Hour)
	_, err := f.scheduler.Enqueue("a1", nil, &future)
	require.NoError(t, err)

	records := f.scheduler.RunOnce(context.Background())
	assert.Empty(t, records)
	assert.Equal(t, 1, f.scheduler.Pending())
}

func TestCancelPreventsDispatch(t *testing.T) {
	f := newFixture(t, nil, 0)
	f.addActiveAgent(t, "a1", &stubAgent{})

	task, err := f.scheduler.Enqueue("a1", nil, nil)
	require.NoError(t, err)
	require.NoError(t, f.scheduler.Cancel(task.ID))

	records := f.scheduler.RunOnce(context.Background())
	assert.Empty(t, records)
	assert.Equal(t, 0, f.scheduler.History().Len())

	// Cancelling twice is refused.
	assert.ErrorIs(t, f.scheduler.Cancel(task.ID), core.ErrTaskAlreadyDispatched)
}

func TestCancelErrors(t *testing.T) {
	f := newFixture(t, nil, 0)
	f.addActiveAgent(t, "a1", &stubAgent{})

	assert.ErrorIs(t, f.scheduler.Cancel("missing"), core.ErrTaskNotFound)

	task, err := f.scheduler.Enqueue("a1", nil, nil)
	require.NoError(t, err)
	f.scheduler.RunOnce(context.Background())

	assert.ErrorIs(t, f.scheduler.Cancel(task.ID), core.ErrTaskAlreadyDispatched)
}

func TestDispatchedEntriesLeaveTheQueue(t *testing.T) {
	f := newFixture(t, nil, 0)
	f.addActiveAgent(t, "a1", &stubAgent{})

	task, err := f.scheduler.Enqueue("a1", nil, nil)
	require.NoError(t, err)
	f.scheduler.RunOnce(context.Background())

	// No tombstone survives the dispatch; the history answers instead.
	f.scheduler.mu.Lock()
	remaining := len(f.scheduler.entries)
	f.scheduler.mu.Unlock()
	assert.Equal(t, 0, remaining)

	assert.ErrorIs(t, f.scheduler.Cancel(task.ID), core.ErrTaskAlreadyDispatched)
	assert.ErrorIs(t, f.scheduler.Cancel("never-seen"), core.ErrTaskNotFound)
}

func TestUnloadedAgentFailsTaskWithoutAbortingTick(t *testing.T) {
	f := newFixture(t, nil, 0)
	f.addActiveAgent(t, "doomed", &stubAgent{})
	f.addActiveAgent(t, "healthy", &stubAgent{})

	_, err := f.scheduler.Enqueue("doomed", nil, nil)
	require.NoError(t, err)
	_, err = f.scheduler.Enqueue("healthy", nil, nil)
	require.NoError(t, err)

	// The agent disappears between enqueue and dispatch.
	require.NoError(t, f.registry.Deactivate("doomed"))
	require.NoError(t, f.registry.Unload("doomed"))

	records := f.scheduler.RunOnce(context.Background())
	require.Len(t, records, 2)

	byAgent := make(map[string]ExecutionRecord)
	for _, rec := range records {
		byAgent[rec.AgentID] = rec
	}
	assert.Equal(t, StatusFailed, byAgent["doomed"].Status)
	assert.Equal(t, FailureAgentNotFound, byAgent["doomed"].FailureKind)
	assert.Equal(t, StatusCompleted, byAgent["healthy"].Status)
}

func TestInactiveAgentFailsTask(t *testing.T) {
	f := newFixture(t, nil, 0)
	require.NoError(t, f.registry.Register("a1", &stubAgent{}, ""))

	_, err := f.scheduler.Enqueue("a1", nil, nil)
	require.NoError(t, err)

	records := f.scheduler.RunOnce(context.Background())
	require.Len(t, records, 1)
	assert.Equal(t, StatusFailed, records[0].Status)
	assert.Equal(t, FailureAgentInactive, records[0].FailureKind)
}

func TestAgentErrorIsRecorded(t *testing.T) {
	f := newFixture(t, nil, 0)
	f.addActiveAgent(t, "a1", &stubAgent{
		execute: func(context.Context, core.Context) (any, error) {
			return nil, errors.New("downstream unavailable")
		},
	})

	rec, err := f.scheduler.ExecuteNow(context.Background(), "a1", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, rec.Status)
	assert.Equal(t, FailureExecutionError, rec.FailureKind)
	assert.Contains(t, rec.Failure, "downstream unavailable")
	assert.Equal(t, consensus.VerdictNotApplicable, rec.Verdict)
}

func TestAgentPanicIsContained(t *testing.T) {
	f := newFixture(t, nil, 0)
	f.addActiveAgent(t, "a1", &stubAgent{
		execute: func(context.Context, core.Context) (any, error) {
			panic("agent exploded")
		},
	})

	rec, err := f.scheduler.ExecuteNow(context.Background(), "a1", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, rec.Status)
	assert.Equal(t, FailureExecutionError, rec.FailureKind)
	assert.Contains(t, rec.Failure, "agent panic")
}

func TestExecutionTimeout(t *testing.T) {
	f := newFixture(t, nil, 50*time.Millisecond)
	f.addActiveAgent(t, "a1", &stubAgent{
		execute: func(ctx context.Context, _ core.Context) (any, error) {
			select {
			case <-time.After(time.Second):
				return "too late", nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	})

	rec, err := f.scheduler.ExecuteNow(context.Background(), "a1", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, rec.Status)
	assert.Equal(t, FailureExecutionTimeout, rec.FailureKind)
}

func TestExecuteNowUnknownAgent(t *testing.T) {
	f := newFixture(t, nil, 0)

	_, err := f.scheduler.ExecuteNow(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, core.ErrAgentNotFound)
}

func TestConsensusVerdictOnRecord(t *testing.T) {
	panel := consensus.NewPanel([]consensus.Validator{consensus.NonEmptyOutput()}, 0)
	f := newFixture(t, panel, 0)
	f.addActiveAgent(t, "a1", &stubAgent{})

	rec, err := f.scheduler.ExecuteNow(context.Background(), "a1", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, rec.Status)
	assert.Equal(t, consensus.VerdictAccepted, rec.Verdict)
	require.Len(t, rec.Judgments, 1)
	assert.True(t, rec.Judgments[0].Approve)
}

func TestRejectedVerdictStillCompletes(t *testing.T) {
	// A rejecting panel does not turn the execution into a failure.
	reject := consensus.Validator{
		Name: "always_no",
		Judge: func(any, core.Context) (bool, float64, error) {
			return false, 1, nil
		},
	}
	panel := consensus.NewPanel([]consensus.Validator{reject}, 0)
	f := newFixture(t, panel, 0)
	f.addActiveAgent(t, "a1", &stubAgent{})

	rec, err := f.scheduler.ExecuteNow(context.Background(), "a1", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, rec.Status)
	assert.Equal(t, consensus.VerdictRejected, rec.Verdict)
}

func TestHistoryIsAppendOnlyAndMostRecentFirst(t *testing.T) {
	f := newFixture(t, nil, 0)
	f.addActiveAgent(t, "a1", &stubAgent{})
	f.addActiveAgent(t, "a2", &stubAgent{})

	for _, id := range []string{"a1", "a2", "a1"} {
		_, err := f.scheduler.ExecuteNow(context.Background(), id, nil)
		require.NoError(t, err)
	}

	history := f.scheduler.History()
	assert.Equal(t, 3, history.Len())

	var seqs []uint64
	var agentIDs []string
	for rec := range history.All("", 0) {
		seqs = append(seqs, rec.Seq)
		agentIDs = append(agentIDs, rec.AgentID)
	}
	assert.Equal(t, []uint64{3, 2, 1}, seqs)
	assert.Equal(t, []string{"a1", "a2", "a1"}, agentIDs)

	var filtered []uint64
	for rec := range history.All("a1", 0) {
		filtered = append(filtered, rec.Seq)
	}
	assert.Equal(t, []uint64{3, 1}, filtered)

	var limited []uint64
	for rec := range history.All("", 2) {
		limited = append(limited, rec.Seq)
	}
	assert.Equal(t, []uint64{3, 2}, limited)
}

func TestStartStopRunLoop(t *testing.T) {
	f := newFixture(t, nil, 0)
	f.addActiveAgent(t, "a1", &stubAgent{})

	_, err := f.scheduler.Enqueue("a1", nil, nil)
	require.NoError(t, err)

	f.scheduler.Start(10 * time.Millisecond)
	assert.Eventually(t, func() bool {
		return f.scheduler.History().Len() == 1
	}, time.Second, 10*time.Millisecond)
	f.scheduler.Stop()
}

func TestStopWithoutStart(t *testing.T) {
	f := newFixture(t, nil, 0)
	f.scheduler.Stop()
}

// Full lifecycle: deploy, stake, activate, execute through consensus, then
// tear down and confirm the id is gone.
func TestAgentLifecycleEndToEnd(t *testing.T) {
	panel := consensus.NewPanel([]consensus.Validator{consensus.NonEmptyOutput()}, 0)
	f := newFixture(t, panel, 0)

	agent := agents.NewSentimentAgent("sentiment-1", nil)
	require.NoError(t, f.registry.Register("sentiment-1", agent, "wallet-1"))
	require.NoError(t, f.ledger.Deposit("sentiment-1", 150))
	require.NoError(t, f.registry.Activate("sentiment-1"))

	task, err := f.scheduler.Enqueue("sentiment-1", core.Context{"text": "I love Solana!"}, nil)
	require.NoError(t, err)

	records := f.scheduler.RunOnce(context.Background())
	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, task.ID, rec.TaskID)
	assert.Equal(t, StatusCompleted, rec.Status)
	assert.Equal(t, consensus.VerdictAccepted, rec.Verdict)

	result, ok := rec.Output.(agents.SentimentResult)
	require.True(t, ok)
	assert.Equal(t, "Positive", result.Sentiment)

	// Last-execution summary reached the registry.
	info, err := f.registry.Lookup("sentiment-1")
	require.NoError(t, err)
	require.NotNil(t, info.LastExecution)
	assert.Equal(t, task.ID, info.LastExecution.TaskID)
	assert.False(t, info.LastExecution.Failed)

	// Tear down: deactivate, withdraw the full stake, unload.
	require.NoError(t, f.registry.Deactivate("sentiment-1"))
	require.NoError(t, f.ledger.Withdraw("sentiment-1", 150))
	require.NoError(t, f.registry.Unload("sentiment-1"))

	_, err = f.scheduler.Enqueue("sentiment-1", core.Context{"text": "again"}, nil)
	assert.ErrorIs(t, err, core.ErrAgentNotFound)

	// History survives the unload.
	assert.Equal(t, 1, f.scheduler.History().Len())
}
