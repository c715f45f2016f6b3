package fixloop

import (
	"context"
	"fmt"

	"github.com/hugo-lorenzo-mato/mendbot/internal/core"
	"github.com/hugo-lorenzo-mato/mendbot/internal/service"
)

// verdict is the result of INVOKE and validation, before reconciliation.
type verdict struct {
	outcome     core.Outcome
	detail      string
	regressions []core.TestName
	// results is the regression run, set when outcome is fixed.
	results []core.TestResult
}

// iterate runs INVOKE through RECONCILE for target. It is detached from
// cancellation: once an attempt has started it runs to completion so the
// tree is always reconciled. The error is non-nil only when rollback failed.
func (c *Controller) iterate(parent context.Context, sess *session, target core.TestName) (core.AttemptRecord, error) {
	ctx := context.WithoutCancel(parent)
	start := c.now()
	rec := core.AttemptRecord{
		Iteration: len(sess.attempts) + 1,
		Test:      target,
		StartedAt: start,
	}
	log := c.logger.WithSession(sess.id).WithIteration(rec.Iteration).WithTest(string(target))
	log.Info("attempting fix", "failing", len(sess.failing))

	agent := c.invoker.Invoke(ctx, target, sess.output(target), c.template())
	c.metrics.ObserveAgent(agent.Kind, agent.Duration)

	var v verdict
	if agent.Kind == service.AgentCompleted {
		v = c.validate(ctx, sess, target, &rec)
	} else {
		v = verdict{outcome: core.OutcomeAgentFailed, detail: fmt.Sprintf("agent %s: %s", agent.Kind, errText(agent.Err))}
	}

	err := c.reconcile(ctx, sess, target, v, &rec)
	rec.Duration = c.now().Sub(start)
	if err != nil {
		log.Error("reconcile failed", "error", err)
		return rec, err
	}

	log.Info("attempt finished",
		"outcome", string(rec.Outcome),
		"committed", rec.Committed,
		"detail", rec.Detail,
		"duration", rec.Duration)
	return rec, nil
}

// validate runs VALIDATE_TARGET and VALIDATE_REGRESSION.
func (c *Controller) validate(ctx context.Context, sess *session, target core.TestName, rec *core.AttemptRecord) verdict {
	clean, err := c.tree.IsClean(ctx)
	if err != nil {
		return verdict{outcome: core.OutcomeNoOp, detail: "checking working tree: " + err.Error()}
	}
	if clean {
		return verdict{outcome: core.OutcomeNoOp, detail: "no changes detected after agent run"}
	}
	c.recordDiff(ctx, rec)

	res, err := c.runner.RunOne(ctx, target)
	c.metrics.ObserveTestRun("one", err)
	if err != nil {
		return classifyRunError(err, false)
	}
	if !res.Passed() {
		sess.noteFailure(res)
		return verdict{outcome: core.OutcomeNoOp, detail: fmt.Sprintf("target still %s", res.Status)}
	}

	results, err := c.regressionRun(ctx, sess, target)
	if err != nil {
		return classifyRunError(err, true)
	}

	idx := core.Index(results)
	var regressions []core.TestName
	for _, name := range sess.passing.Sorted() {
		if r, ok := idx[name]; !ok || r.Failing() {
			regressions = append(regressions, name)
		}
	}
	if len(regressions) > 0 {
		return verdict{
			outcome:     core.OutcomeRegressed,
			detail:      fmt.Sprintf("%d previously passing test(s) broke", len(regressions)),
			regressions: regressions,
		}
	}

	// A module that now imports is replaced by its tests in the report.
	if target.IsModule() {
		if r, ok := idx[target]; ok && r.Failing() {
			return verdict{outcome: core.OutcomeNoOp, detail: "module still fails to collect in the regression run"}
		}
	} else if r, ok := idx[target]; !ok || !r.Passed() {
		return verdict{outcome: core.OutcomeNoOp, detail: "target passed alone but not in the regression run"}
	}
	return verdict{outcome: core.OutcomeFixed, results: results}
}

func (c *Controller) regressionRun(ctx context.Context, sess *session, target core.TestName) ([]core.TestResult, error) {
	if c.cfg.Regression == RegressionPassing {
		names := sess.passing.Clone()
		names.Add(target)
		results, err := c.runner.RunSelected(ctx, names.Sorted())
		c.metrics.ObserveTestRun("selected", err)
		return results, err
	}
	results, err := c.runner.RunAll(ctx)
	c.metrics.ObserveTestRun("all", err)
	return results, err
}

func (c *Controller) recordDiff(ctx context.Context, rec *core.AttemptRecord) {
	ds, ok := c.tree.(core.DiffStater)
	if !ok {
		return
	}
	stat, err := ds.DiffStat(ctx)
	if err != nil {
		c.logger.Debug("collecting diff stat", "error", err)
		return
	}
	rec.FilesChanged = len(stat.Files)
	rec.LinesAdded = stat.LinesAdded
	rec.LinesRemoved = stat.LinesRemoved
}

// classifyRunError maps a runner failure during validation to an outcome.
// The harness worked at discovery, so a harness or parse failure now is
// blamed on the change. A missing target is a no-op; a missing test in the
// regression selection is a regression.
func classifyRunError(err error, regression bool) verdict {
	detail := err.Error()
	switch {
	case core.IsCode(err, core.CodeRunTimeout):
		return verdict{outcome: core.OutcomeTimedOut, detail: detail}
	case core.IsCode(err, core.CodeTestNotFound) && !regression:
		return verdict{outcome: core.OutcomeNoOp, detail: detail}
	default:
		return verdict{outcome: core.OutcomeRegressed, detail: detail}
	}
}

// reconcile commits a fix or rolls back anything else.
func (c *Controller) reconcile(ctx context.Context, sess *session, target core.TestName, v verdict, rec *core.AttemptRecord) error {
	rec.Outcome = v.outcome
	rec.Detail = v.detail
	rec.Regressions = v.regressions

	if v.outcome == core.OutcomeFixed {
		id, err := c.tree.Commit(ctx, commitMessage(target, sess.id))
		switch {
		case err == nil:
			rec.Committed = true
			rec.CommitID = id
			sess.applyFix(target, v.results, c.cfg.Regression == RegressionFull)
			return nil
		case core.IsCode(err, core.CodeNothingToCommit):
			rec.Outcome = core.OutcomeNoOp
			rec.Detail = "nothing to commit"
		default:
			rec.Outcome = core.OutcomeNoOp
			rec.Detail = "commit failed: " + err.Error()
		}
	}
	return c.rollback(ctx)
}

func commitMessage(target core.TestName, sessionID string) string {
	return fmt.Sprintf("%s%s\n\nMendbot-Session: %s\n", CommitPrefix, target, sessionID)
}
