package consensus

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/chronoeffector/orchestrator/core"
)

// Verdict is the outcome of running a candidate output through the panel.
// A rejected verdict is a normal, successfully-computed result, not an error.
type Verdict string

const (
	VerdictAccepted      Verdict = "accepted"
	VerdictRejected      Verdict = "rejected"
	VerdictNotApplicable Verdict = "not_applicable"
)

// JudgeFunc is a single validator's judgment over a candidate output and the
// task's validation context. Judges must be pure functions of their inputs;
// the panel runs them concurrently.
type JudgeFunc func(output any, vc core.Context) (approve bool, confidence float64, err error)

// Validator pairs a judge with a stable name for the audit trail.
type Validator struct {
	Name  string
	Judge JudgeFunc
}

// Judgment is one validator's recorded vote.
type Judgment struct {
	Validator  string  `json:"validator"`
	Approve    bool    `json:"approve"`
	Confidence float64 `json:"confidence"`
	Error      string  `json:"error,omitempty"`
}

// Result carries the verdict plus the per-validator judgment list.
type Result struct {
	Verdict   Verdict    `json:"verdict"`
	Judgments []Judgment `json:"judgments"`
	Approvals int        `json:"approvals"`
	Quorum    int        `json:"quorum"`
}

// Panel evaluates agent outputs against an ordered set of validators and a
// quorum. The validator list and quorum are fixed at construction.
type Panel struct {
	validators []Validator
	quorum     int
}

// MajorityQuorum is the default decision policy: a strict majority of the
// panel. Ties on even panels fall short of it and reject.
func MajorityQuorum(panelSize int) int {
	return panelSize/2 + 1
}

// NewPanel builds a panel over the given validators. A quorum of 0 selects
// the strict-majority default.
func NewPanel(validators []Validator, quorum int) *Panel {
	if quorum <= 0 {
		quorum = MajorityQuorum(len(validators))
	}
	return &Panel{
		validators: validators,
		quorum:     quorum,
	}
}

// Size returns the number of validators on the panel.
func (p *Panel) Size() int {
	return len(p.validators)
}

// Evaluate runs every validator over the output and tallies approvals
// against the quorum. A validator that panics or returns an error counts as
// a negative judgment and is recorded; it never aborts the rest of the
// panel. An empty panel yields VerdictNotApplicable.
func (p *Panel) Evaluate(ctx context.Context, output any, vc core.Context) Result {
	if len(p.validators) == 0 {
		return Result{Verdict: VerdictNotApplicable}
	}

	judgments := make([]Judgment, len(p.validators))
	var wg sync.WaitGroup
	for i, v := range p.validators {
		wg.Add(1)
		go func(i int, v Validator) {
			defer wg.Done()
			judgments[i] = judge(v, output, vc)
		}(i, v)
	}
	wg.Wait()

	approvals := 0
	for _, j := range judgments {
		if j.Approve {
			approvals++
		}
	}

	verdict := VerdictRejected
	if approvals >= p.quorum {
		verdict = VerdictAccepted
	}
	return Result{
		Verdict:   verdict,
		Judgments: judgments,
		Approvals: approvals,
		Quorum:    p.quorum,
	}
}

func judge(v Validator, output any, vc core.Context) (j Judgment) {
	j.Validator = v.Name

	defer func() {
		if r := recover(); r != nil {
			log.Printf("Validator %s panicked: %v", v.Name, r)
			j.Approve = false
			j.Confidence = 0
			j.Error = fmt.Sprintf("validator panic: %v", r)
		}
	}()

	approve, confidence, err := v.Judge(output, vc)
	if err != nil {
		j.Approve = false
		j.Error = err.Error()
		return j
	}
	j.Approve = approve
	j.Confidence = confidence
	return j
}
