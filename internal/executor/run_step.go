package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vk/burstmission/internal/ctxlog"
	"github.com/vk/burstmission/internal/mission"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// runStep executes one step and builds its immutable result.
func (r *run) runStep(ctx context.Context, n *stepNode) mission.StepResult {
	step := n.step
	ctx = ctxlog.With(ctx, "step", step.ID)
	logger := ctxlog.FromContext(ctx)

	ctx, span := r.e.tracer.Start(ctx, "step.execute", trace.WithAttributes(
		attribute.String("step.id", step.ID),
		attribute.String("step.type", string(step.Type)),
	))
	defer span.End()

	logger.Info("▶️ Starting step", "name", step.DisplayName(), "type", step.Type)
	res := mission.StepResult{StepID: step.ID, Type: step.Type, StartedAt: time.Now()}

	output, skipped, err := r.invoke(ctx, step)

	res.FinishedAt = time.Now()
	res.Duration = res.FinishedAt.Sub(res.StartedAt)

	var outcome string
	switch {
	case err != nil:
		res.Status = mission.StepFailed
		res.Err = err
		res.Error = err.Error()
		if kind := mission.Kind(err); kind != nil {
			res.ErrorKind = kind.Error()
		}
		res.Tolerated = step.Tolerated(r.tolerateDefault)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("❌ Step failed", "error", err, "tolerated", res.Tolerated, "duration", res.Duration)
		outcome = "failed: " + err.Error()
	case skipped:
		res.Status = mission.StepSkipped
		logger.Info("⏭️ Skipped step", "condition", step.Condition)
		outcome = string(mission.StepSkipped)
	default:
		res.Status = mission.StepSucceeded
		res.Success = true
		res.Output = output
		r.storeOutput(step.ID, output)
		logger.Info("✅ Finished step", "duration", res.Duration)
		outcome = string(mission.StepSucceeded)
	}

	span.SetAttributes(attribute.String("step.status", string(res.Status)))
	r.e.metrics.recordStep(ctx, res)
	r.audit(ctx, "step.execute "+step.ID, outcome)
	return res
}

// invoke resolves and calls the step's tool. skipped is true when the step's
// condition evaluated to false.
func (r *run) invoke(ctx context.Context, step *mission.Step) (output any, skipped bool, err error) {
	logger := ctxlog.FromContext(ctx)
	outputs, vars := r.snapshot()

	if step.Condition != "" {
		ok, err := r.e.conditions.Eval(ctx, step.Condition, outputs, vars)
		if err != nil {
			return nil, false, &mission.Error{Kind: mission.ErrStepExecutionFailure, StepID: step.ID, Msg: "condition", Err: err}
		}
		if !ok {
			return nil, true, nil
		}
	}

	tools := r.e.session.Tools()
	tool, found := tools.Get(string(step.Type))
	if !found {
		return nil, false, &mission.Error{
			Kind:   mission.ErrToolNotFound,
			StepID: step.ID,
			Msg:    fmt.Sprintf("no tool registered for step type %q", step.Type),
		}
	}

	params := substituteParams(step.Parameters, vars)
	if err := tools.ValidateParams(string(step.Type), params); err != nil {
		return nil, false, mission.StepError(mission.ErrStepExecutionFailure, step.ID, err)
	}
	if err := r.acquireCall(ctx); err != nil {
		return nil, false, mission.StepError(mission.ErrStepExecutionFailure, step.ID, err)
	}

	timeout := step.Timeout(r.stepTimeout)
	logger.Debug("Calling tool.", "tool", tool.Name(), "timeout", timeout)
	output, err = callWithTimeout(ctx, tool.Invoke, params, timeout)
	if err != nil {
		var timeoutErr *timeoutError
		if errors.As(err, &timeoutErr) {
			return nil, false, &mission.Error{
				Kind:   mission.ErrStepTimeout,
				StepID: step.ID,
				Msg:    fmt.Sprintf("no result after %s", timeout),
			}
		}
		return nil, false, mission.StepError(mission.ErrStepExecutionFailure, step.ID, err)
	}
	return output, false, nil
}

// acquireCall enforces the per-run tool call cap and the rate limit.
func (r *run) acquireCall(ctx context.Context) error {
	if r.maxToolCalls > 0 && r.toolCalls.Add(1) > r.maxToolCalls {
		return fmt.Errorf("tool call limit of %d reached", r.maxToolCalls)
	}
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
	}
	return nil
}

type timeoutError struct{ after time.Duration }

func (e *timeoutError) Error() string { return fmt.Sprintf("timed out after %s", e.after) }

type invokeFunc func(ctx context.Context, params map[string]any) (any, error)

// callWithTimeout runs fn in its own goroutine. When the deadline passes
// first, the goroutine is left behind and a *timeoutError is returned; its
// result is dropped into a buffered channel nobody reads.
func callWithTimeout(ctx context.Context, fn invokeFunc, params map[string]any, timeout time.Duration) (any, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		output any
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- outcome{err: fmt.Errorf("tool panicked: %v", p)}
			}
		}()
		out, err := fn(callCtx, params)
		done <- outcome{output: out, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil && errors.Is(o.err, context.DeadlineExceeded) && ctx.Err() == nil && callCtx.Err() != nil {
			return nil, &timeoutError{after: timeout}
		}
		return o.output, o.err
	case <-callCtx.Done():
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, &timeoutError{after: timeout}
	}
}
