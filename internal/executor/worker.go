package executor

import (
	"context"

	"github.com/vk/burstmission/internal/ctxlog"
	"github.com/vk/burstmission/internal/mission"
)

// worker is the core processing loop for a single concurrent worker.
func (r *run) worker(ctx context.Context, readyChan chan *stepNode, workerID int) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Worker started.", "workerID", workerID)

	for n := range readyChan {
		workerLogger := logger.With("workerID", workerID, "stepID", n.step.ID)

		if r.stopping(ctx) {
			workerLogger.Debug("Run is stopping, step will not start.")
			r.skipDependents(ctx, n)
			n.settle(&r.wg)
			continue
		}

		workerLogger.Debug("Worker picked up step for execution.")
		res := r.runStep(ctx, n)
		r.record(res)

		completed := res.Status != mission.StepFailed || res.Tolerated
		if !completed {
			r.abort(ctx, n.step.ID, res.Err)
		}

		if completed && !r.stopping(ctx) {
			for _, dependent := range n.dependents {
				if dependent.depCount.Add(-1) == 0 {
					workerLogger.Debug("Unlocking dependent step.", "dependentID", dependent.step.ID)
					readyChan <- dependent
				}
			}
		} else {
			r.skipDependents(ctx, n)
		}

		n.settle(&r.wg)
	}
	logger.Debug("Worker finished.", "workerID", workerID)
}
