package executor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/vk/burstmission/internal/ctxlog"
	"github.com/vk/burstmission/internal/dag"
	"github.com/vk/burstmission/internal/mission"
	"golang.org/x/time/rate"
)

// stepNode is the runtime state of one step during a run.
type stepNode struct {
	step       *mission.Step
	depCount   atomic.Int32
	dependents []*stepNode
	settleOnce sync.Once
}

// settle marks the node as finished for the run's WaitGroup. Each node is
// settled exactly once, whether it ran or not.
func (n *stepNode) settle(wg *sync.WaitGroup) {
	n.settleOnce.Do(wg.Done)
}

// run holds the state of a single ExecuteMission call.
type run struct {
	e       *Executor
	mission *mission.Mission
	id      string
	started time.Time

	workers         int
	stepTimeout     time.Duration
	tolerateDefault bool
	auditEnabled    bool
	agent           string
	maxToolCalls    int64
	limiter         *rate.Limiter

	nodes []*stepNode
	wg    sync.WaitGroup

	toolCalls atomic.Int64
	aborted   atomic.Bool

	mu         sync.Mutex
	results    []mission.StepResult
	failedStep string
	failure    error
	outputs    map[string]any
	vars       map[string]string
}

func newRun(e *Executor, m *mission.Mission, g *dag.Graph) (*run, error) {
	cfg := e.session.Config()
	r := &run{
		e:               e,
		mission:         m,
		id:              uuid.NewString(),
		started:         time.Now(),
		workers:         cfg.MaxParallelSteps,
		stepTimeout:     cfg.MissionTimeout,
		tolerateDefault: m.Config.ContinueOnErrorDefault(),
		auditEnabled:    cfg.AuditEnabled,
		agent:           cfg.AgentID,
		maxToolCalls:    int64(cfg.MaxToolCalls),
		outputs:         make(map[string]any),
		vars:            make(map[string]string),
	}
	if c := m.Config; c != nil {
		if c.MaxParallelSteps != nil {
			r.workers = *c.MaxParallelSteps
		}
		if c.TimeoutSeconds != nil {
			r.stepTimeout = time.Duration(*c.TimeoutSeconds) * time.Second
		}
		if c.AuditEnabled != nil {
			r.auditEnabled = *c.AuditEnabled
		}
	}
	if r.workers > len(m.Steps) {
		r.workers = len(m.Steps)
	}
	if cfg.ToolCallsPerSecond > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(cfg.ToolCallsPerSecond), max(r.workers, 1))
	}

	byID := make(map[string]*stepNode, len(m.Steps))
	r.nodes = make([]*stepNode, len(m.Steps))
	for i := range m.Steps {
		n := &stepNode{step: &m.Steps[i]}
		r.nodes[i] = n
		byID[n.step.ID] = n
	}
	for _, n := range r.nodes {
		deps, err := g.Dependencies(n.step.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve dependencies of step %q: %w", n.step.ID, err)
		}
		n.depCount.Store(int32(len(deps)))
		dependents, err := g.Dependents(n.step.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve dependents of step %q: %w", n.step.ID, err)
		}
		for _, id := range dependents {
			n.dependents = append(n.dependents, byID[id])
		}
	}
	return r, nil
}

// execute runs the worker pool until every node is settled.
func (r *run) execute(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)

	readyChan := make(chan *stepNode, len(r.nodes))

	logger.Debug("Initializing executor, finding root steps...")
	rootCount := 0
	for _, n := range r.nodes {
		if n.depCount.Load() == 0 {
			logger.Debug("Found root step.", "stepID", n.step.ID)
			readyChan <- n
			rootCount++
		}
	}
	logger.Debug("Found all root steps.", "count", rootCount)

	r.wg.Add(len(r.nodes))

	logger.Debug("Starting worker pool.", "workers", r.workers)
	for i := 0; i < r.workers; i++ {
		go r.worker(ctx, readyChan, i)
	}

	logger.Debug("Waiting for all steps to settle...")
	r.wg.Wait()
	close(readyChan)
	logger.Debug("All steps settled.")
}

// stopping reports whether no further step may start.
func (r *run) stopping(ctx context.Context) bool {
	return r.aborted.Load() || ctx.Err() != nil
}

// abort records the first fatal failure. Later failures do not replace it.
func (r *run) abort(ctx context.Context, stepID string, cause error) {
	if !r.aborted.CompareAndSwap(false, true) {
		return
	}
	r.mu.Lock()
	r.failedStep = stepID
	r.failure = cause
	r.mu.Unlock()
	ctxlog.FromContext(ctx).Warn("Aborting mission, no further steps will start.", "failedStep", stepID)
}

// skipDependents settles every transitive dependent of n that has not been
// settled yet. They are left out of the result.
func (r *run) skipDependents(ctx context.Context, n *stepNode) {
	logger := ctxlog.FromContext(ctx)
	for _, dependent := range n.dependents {
		dependent.settleOnce.Do(func() {
			logger.Debug("Step will not start.", "stepID", dependent.step.ID, "dependency", n.step.ID)
			r.wg.Done()
			r.skipDependents(ctx, dependent)
		})
	}
}

func (r *run) record(res mission.StepResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

// audit appends to the session's audit log when auditing is enabled for this
// run. A failing sink is logged and does not affect the mission.
func (r *run) audit(ctx context.Context, action, outcome string) {
	if !r.auditEnabled {
		return
	}
	if _, err := r.e.session.Audit().Append(ctx, r.agent, action, outcome); err != nil {
		ctxlog.FromContext(ctx).Warn("Failed to record audit entry.", "action", action, "error", err)
	}
}

// result aggregates the run once every node has settled.
func (r *run) result(ctx context.Context) *mission.ExecutionResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := &mission.ExecutionResult{
		MissionID:   r.id,
		MissionName: r.mission.Name,
		StepResults: append([]mission.StepResult(nil), r.results...),
		FailedStep:  r.failedStep,
		StartedAt:   r.started,
		Duration:    time.Since(r.started),
	}

	tolerated := false
	for _, sr := range r.results {
		if sr.Status == mission.StepFailed {
			tolerated = true
		}
	}
	switch {
	case ctx.Err() != nil:
		res.Status = mission.StatusCancelled
	case r.failedStep != "":
		res.Status = mission.StatusFailed
	case tolerated:
		res.Status = mission.StatusCompletedWithFailures
	default:
		res.Status = mission.StatusCompleted
	}
	return res
}

// err returns the error ExecuteMission reports alongside the result.
func (r *run) err(ctx context.Context) error {
	if ctx.Err() != nil {
		return fmt.Errorf("mission %q cancelled: %w", r.mission.Name, ctx.Err())
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failedStep == "" {
		return nil
	}
	return &mission.Error{
		Kind:   mission.ErrMissionAborted,
		StepID: r.failedStep,
		Msg:    fmt.Sprintf("mission %q stopped after step failure", r.mission.Name),
		Err:    r.failure,
	}
}
