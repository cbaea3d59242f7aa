package registry

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/chronoeffector/orchestrator/core"
)

// TestOutcome is the result of running an agent against one test context.
type TestOutcome struct {
	Context  core.Context  `json:"context"`
	Output   any           `json:"output,omitempty"`
	Error    string        `json:"error,omitempty"`
	Success  bool          `json:"success"`
	Duration time.Duration `json:"execution_time"`
}

// VerificationReport is the outcome of a full verification pass: the basic
// registration checks plus per-context execution results.
type VerificationReport struct {
	AgentID string                 `json:"agent_id"`
	Basic   Verification           `json:"basic_verification"`
	Tests   map[string]TestOutcome `json:"execution_tests,omitempty"`
	Passed  bool                   `json:"passed"`
}

// ReportSummary condenses one agent's verification for the all-agents view.
type ReportSummary struct {
	Passed       bool `json:"passed"`
	TestCount    int  `json:"test_count"`
	SuccessCount int  `json:"success_count"`
}

// Verifier runs registered agents against caller-supplied test contexts and
// keeps the latest report per agent. Verification is read-only with respect
// to the registry: it never changes an agent's state.
type Verifier struct {
	registry *Registry

	mu      sync.Mutex
	reports map[string]VerificationReport
}

func NewVerifier(registry *Registry) *Verifier {
	return &Verifier{
		registry: registry,
		reports:  make(map[string]VerificationReport),
	}
}

// Verify executes the agent against each test context and records the
// outcomes. An empty context list runs a single default context. Execution
// failures mark the report failed but keep the remaining contexts running;
// only an unknown agent id is an error.
func (v *Verifier) Verify(ctx context.Context, agentID string, testContexts []core.Context) (VerificationReport, error) {
	record, err := v.registry.Lookup(agentID)
	if err != nil {
		return VerificationReport{}, err
	}

	report := VerificationReport{
		AgentID: agentID,
		Basic:   record.Verification,
		Tests:   make(map[string]TestOutcome),
		Passed:  record.Verification.Passed,
	}

	agent, _, err := v.registry.AgentForDispatch(agentID)
	if err != nil {
		return VerificationReport{}, err
	}

	if len(testContexts) == 0 {
		testContexts = []core.Context{{"test_id": "default_test"}}
	}

	for i, tc := range testContexts {
		testID, _ := tc["test_id"].(string)
		if testID == "" {
			testID = fmt.Sprintf("test_%d", i)
		}

		outcome := runTest(ctx, agent, tc)
		if !outcome.Success {
			log.Printf("Agent %s failed verification test %s: %s", agentID, testID, outcome.Error)
			report.Passed = false
		}
		report.Tests[testID] = outcome
	}

	v.mu.Lock()
	v.reports[agentID] = report
	v.mu.Unlock()

	success := 0
	for _, outcome := range report.Tests {
		if outcome.Success {
			success++
		}
	}
	log.Printf("Agent %s verification complete: %d/%d tests passed", agentID, success, len(report.Tests))
	return report, nil
}

// runTest executes one test context behind a panic boundary.
func runTest(ctx context.Context, agent core.Agent, tc core.Context) (outcome TestOutcome) {
	outcome.Context = tc
	started := time.Now()

	defer func() {
		outcome.Duration = time.Since(started)
		if r := recover(); r != nil {
			outcome.Success = false
			outcome.Error = fmt.Sprintf("agent panic: %v", r)
			outcome.Output = nil
		}
	}()

	output, err := agent.Execute(ctx, tc)
	if err != nil {
		outcome.Error = err.Error()
		return outcome
	}
	outcome.Output = output
	outcome.Success = true
	return outcome
}

// Report returns the stored report for one agent.
func (v *Verifier) Report(agentID string) (VerificationReport, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	report, exists := v.reports[agentID]
	if !exists {
		return VerificationReport{}, core.ErrAgentNotFound
	}
	return report, nil
}

// Summary condenses every stored report into per-agent pass/fail counts.
func (v *Verifier) Summary() map[string]ReportSummary {
	v.mu.Lock()
	defer v.mu.Unlock()

	summary := make(map[string]ReportSummary, len(v.reports))
	for agentID, report := range v.reports {
		s := ReportSummary{
			Passed:    report.Passed,
			TestCount: len(report.Tests),
		}
		for _, outcome := range report.Tests {
			if outcome.Success {
				s.SuccessCount++
			}
		}
		summary[agentID] = s
	}
	return summary
}
