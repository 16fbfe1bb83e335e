package consensus

import (
	"fmt"

	"mila/internal/archive"
)

// Verdict is a policy's reading of the decisions recorded so far.
type Verdict int

const (
	VerdictUndecided Verdict = iota
	VerdictApproved
	VerdictRejected
)

// Policy turns the ordered list of recorded decisions into a verdict.
// Decisions arrive in durable commit order; minValidators comes from the
// entry's community profile (0 when no community is configured).
type Policy interface {
	Name() string
	Decide(decisions []archive.Decision, minValidators int) Verdict
}

// FirstDecisionWins resolves the entry on the first durably recorded
// decision. Later decisions are stored for audit but never change the
// outcome.
type FirstDecisionWins struct{}

func (FirstDecisionWins) Name() string { return "first_decision" }

func (FirstDecisionWins) Decide(decisions []archive.Decision, minValidators int) Verdict {
	if len(decisions) == 0 {
		return VerdictUndecided
	}
	if decisions[0] == archive.DecisionApproved {
		return VerdictApproved
	}
	return VerdictRejected
}

// MajorityOfN resolves once more than half of the community's required
// validator count agrees either way.
type MajorityOfN struct{}

func (MajorityOfN) Name() string { return "majority" }

func (MajorityOfN) Decide(decisions []archive.Decision, minValidators int) Verdict {
	n := minValidators
	if n < 1 {
		n = 1
	}
	needed := n/2 + 1
	approvals, rejections := tally(decisions)
	switch {
	case approvals >= needed:
		return VerdictApproved
	case rejections >= needed:
		return VerdictRejected
	default:
		return VerdictUndecided
	}
}

// UnanimousOfN approves only when the community's full required validator
// count has approved; a single rejection resolves the entry as rejected.
type UnanimousOfN struct{}

func (UnanimousOfN) Name() string { return "unanimous" }

func (UnanimousOfN) Decide(decisions []archive.Decision, minValidators int) Verdict {
	n := minValidators
	if n < 1 {
		n = 1
	}
	approvals, rejections := tally(decisions)
	switch {
	case rejections > 0:
		return VerdictRejected
	case approvals >= n:
		return VerdictApproved
	default:
		return VerdictUndecided
	}
}

func tally(decisions []archive.Decision) (approvals, rejections int) {
	for _, d := range decisions {
		if d == archive.DecisionApproved {
			approvals++
		} else {
			rejections++
		}
	}
	return approvals, rejections
}

// PolicyByName resolves a configured policy name.
func PolicyByName(name string) (Policy, error) {
	switch name {
	case "", "first_decision":
		return FirstDecisionWins{}, nil
	case "majority":
		return MajorityOfN{}, nil
	case "unanimous":
		return UnanimousOfN{}, nil
	default:
		return nil, fmt.Errorf("unknown consensus policy %q", name)
	}
}
