// Package runner coordinates workflow execution for many users at once. The
// Coordinator admits at most one running task per user and a global maximum
// across all users; anything beyond that is rejected immediately with a
// descriptive status instead of being queued. Running tasks are tracked in a
// registry and can be cancelled cooperatively per task or per user.
package runner

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/agentrun/logging"
	"github.com/hupe1980/agentrun/workflow"
)

// DefaultMaxConcurrentTasks bounds simultaneously running tasks across all
// users.
const DefaultMaxConcurrentTasks = 5

// Status of an admission or run decision.
type Status string

const (
	// StatusCompleted means the workflow ran to the end.
	StatusCompleted Status = "completed"
	// StatusCancelled means the task honored a cancellation request.
	StatusCancelled Status = "cancelled"
	// StatusRejected means admission control turned the task away.
	StatusRejected Status = "rejected"
	// StatusFailed means a workflow node errored.
	StatusFailed Status = "failed"
)

// Result describes the outcome of one coordinated run.
type Result struct {
	Status  Status
	TaskID  string
	Detail  string
	Outputs map[string]any
	Err     error
}

// Options configure a Coordinator.
type Options struct {
	// MaxConcurrentTasks is the global admission cap.
	MaxConcurrentTasks int64
	Logger             logging.Logger
}

type taskEntry struct {
	taskID string
	flag   *workflow.CancelFlag
}

// Coordinator is the multi-tenant front door for workflow runs. Safe for
// concurrent use.
type Coordinator struct {
	opts Options
	sem  *semaphore.Weighted

	mu     sync.Mutex
	active map[string]*taskEntry // user -> running task
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(optFns ...func(o *Options)) *Coordinator {
	opts := Options{
		MaxConcurrentTasks: DefaultMaxConcurrentTasks,
		Logger:             logging.NewNoOpLogger(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Coordinator{
		opts:   opts,
		sem:    semaphore.NewWeighted(opts.MaxConcurrentTasks),
		active: make(map[string]*taskEntry),
	}
}

// Admit reserves a slot for the user. On success it returns the task id and
// the cancellation flag wired into the slot; the caller must release through
// Finish. Rejections carry a descriptive error and reserve nothing.
func (c *Coordinator) Admit(userID string) (string, *workflow.CancelFlag, error) {
	if !c.sem.TryAcquire(1) {
		return "", nil, fmt.Errorf("all %d task slots are busy, try again later", c.opts.MaxConcurrentTasks)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, running := c.active[userID]; running {
		c.sem.Release(1)
		return "", nil, fmt.Errorf("user %s already has a running task", userID)
	}

	entry := &taskEntry{
		taskID: uuid.NewString(),
		flag:   workflow.NewCancelFlag(),
	}
	c.active[userID] = entry
	logging.ForTask(c.opts.Logger, entry.taskID).Info("task admitted", "user", userID)
	return entry.taskID, entry.flag, nil
}

// Finish releases the user's slot. Finishing an unknown task is a no-op, so
// a cancelled-and-cleaned-up task can still finish safely.
func (c *Coordinator) Finish(userID, taskID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.active[userID]
	if !ok || entry.taskID != taskID {
		return
	}
	delete(c.active, userID)
	c.sem.Release(1)
	c.opts.Logger.Info("task finished", "user", userID, "task_id", taskID)
}

// Cancel requests cooperative cancellation of a specific task. It reports
// whether a matching task was running.
func (c *Coordinator) Cancel(userID, taskID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.active[userID]
	if !ok || entry.taskID != taskID {
		return false
	}
	entry.flag.Cancel()
	c.opts.Logger.Info("task cancellation requested", "user", userID, "task_id", taskID)
	return true
}

// CancelUser requests cancellation of whatever the user is running.
func (c *Coordinator) CancelUser(userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.active[userID]
	if !ok {
		return false
	}
	entry.flag.Cancel()
	return true
}

// IsRunning reports whether the user has an active task.
func (c *Coordinator) IsRunning(userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.active[userID]
	return ok
}

// ActiveTask returns the user's running task id.
func (c *Coordinator) ActiveTask(userID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.active[userID]
	if !ok {
		return "", false
	}
	return entry.taskID, true
}

// ActiveCount returns how many tasks are running right now.
func (c *Coordinator) ActiveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.active)
}

// Run admits, executes a DAG workflow under the user's slot and releases it.
// Admission failures return a rejected result immediately.
func (c *Coordinator) Run(ctx context.Context, userID string, dag *workflow.DAG, input any) Result {
	taskID, flag, err := c.Admit(userID)
	if err != nil {
		return Result{Status: StatusRejected, Detail: err.Error()}
	}
	defer c.Finish(userID, taskID)

	res, err := dag.RunWithCancel(ctx, input, flag)
	if err != nil {
		c.opts.Logger.Error("task failed", "user", userID, "task_id", taskID, "error", err)
		return Result{Status: StatusFailed, TaskID: taskID, Detail: err.Error(), Err: err}
	}

	out := Result{TaskID: taskID, Outputs: res.Outputs}
	switch res.Status {
	case workflow.StatusCancelled:
		out.Status = StatusCancelled
		out.Detail = "task cancelled by request"
	default:
		out.Status = StatusCompleted
	}
	return out
}
