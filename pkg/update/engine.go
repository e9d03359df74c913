package update

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/ridgeline-io/ridgeline/pkg/log"
)

// Result is the terminal outcome of one change's policy check
type Result string

const (
	ResultSucceeded    Result = "SUCCEEDED"
	ResultActionNeeded Result = "ACTION_NEEDED"
	ResultFailed       Result = "FAILED"
)

// Verdict is the per-change output of an evaluation
type Verdict struct {
	Change       *Change
	Policy       string
	Result       Result
	FailReason   string
	ActionNeeded string
	// Display controls whether the change is surfaced to the user. Denied
	// changes are always displayed; allowed changes follow the policy.
	Display bool
}

// Report is the whole-update outcome
type Report struct {
	Verdicts []Verdict
}

// Allowed reports whether every change succeeded
func (r *Report) Allowed() bool {
	for _, v := range r.Verdicts {
		if v.Result != ResultSucceeded {
			return false
		}
	}
	return true
}

// Denied returns the verdicts that did not succeed
func (r *Report) Denied() []Verdict {
	var out []Verdict
	for _, v := range r.Verdicts {
		if v.Result != ResultSucceeded {
			out = append(out, v)
		}
	}
	return out
}

// Engine evaluates patches against the policy catalog
type Engine struct {
	log zerolog.Logger
}

// NewEngine creates an update policy engine
func NewEngine() *Engine {
	return &Engine{log: log.WithComponent("update")}
}

// Evaluate runs every change's policy condition and returns the full report.
// Evaluation never short-circuits: the user sees the verdict for every
// change, not just the first denial. A condition that cannot be checked
// (collaborator error) fails that change with the error text.
func (e *Engine) Evaluate(ctx context.Context, p *Patch) *Report {
	report := &Report{Verdicts: make([]Verdict, 0, len(p.Changes))}

	for _, c := range p.Changes {
		policy := PolicyByName(c.PolicyName())
		v := Verdict{Change: c, Policy: policy.Name}

		allowed, err := policy.Condition(ctx, c, p)
		switch {
		case err != nil:
			v.Result = ResultFailed
			v.FailReason = err.Error()
			v.Display = true
		case allowed:
			v.Result = ResultSucceeded
			v.Display = policy.PrintAlways
		default:
			if policy.Operational {
				v.Result = ResultActionNeeded
			} else {
				v.Result = ResultFailed
			}
			if policy.FailReason != nil {
				v.FailReason = policy.FailReason(ctx, c, p)
			}
			if policy.ActionNeeded != nil {
				v.ActionNeeded = policy.ActionNeeded(ctx, c, p)
			}
			v.Display = true
		}

		e.log.Debug().
			Str("path", c.PathString()).
			Str("policy", v.Policy).
			Str("result", string(v.Result)).
			Msg("Evaluated change")

		report.Verdicts = append(report.Verdicts, v)
	}

	return report
}
