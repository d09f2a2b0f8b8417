package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/agentrun/llm"
	"github.com/hupe1980/agentrun/logging"
)

const (
	// SplitTaskServerName namespaces the splitter in the tool index.
	SplitTaskServerName = "split_task"
	// SplitTaskToolName is the name the model calls to fan a task out.
	SplitTaskToolName = "split_to_sub_task"
	// SubTaskSeparator joins child outputs into one aggregate. Exported so
	// consumers can split the aggregate back into per-child outputs.
	SubTaskSeparator = "\n===SUBTASK===\n"
	// DefaultSplitRetryLimit bounds how many extra rounds failed children get.
	DefaultSplitRetryLimit = 3
	// DefaultWorkerTagPrefix prefixes the per-child run tags.
	DefaultWorkerTagPrefix = "worker-"
)

// SubTask is one unit a task gets split into: its own system prompt and
// query.
type SubTask struct {
	System string `json:"system"`
	Query  string `json:"query"`
}

// SubTaskResult is the outcome of running one sub task. Failed results are
// retried until the retry ceiling; after that the last content is kept as-is
// in the aggregate.
type SubTaskResult struct {
	Content string
	Failed  bool
}

// SubTaskRunner executes one sub task under the given run tag. Supplied by
// the agent layer so the splitter stays decoupled from agent construction.
type SubTaskRunner func(ctx context.Context, tag string, task SubTask) SubTaskResult

// SplitTaskOptions configure a SplitTask source.
type SplitTaskOptions struct {
	TagPrefix  string
	RetryLimit int
	Logger     logging.Logger
}

// SplitTask is the fan-out tool. When the model decides a task is too large
// it calls split_to_sub_task with a list of sub tasks; each child runs
// concurrently through the injected runner, results join back in input order
// and only the failed subset is re-dispatched on retry rounds.
type SplitTask struct {
	opts   SplitTaskOptions
	runner SubTaskRunner

	mu          sync.Mutex
	spawnRounds int
}

// NewSplitTask creates the splitter around a runner.
func NewSplitTask(runner SubTaskRunner, optFns ...func(o *SplitTaskOptions)) *SplitTask {
	opts := SplitTaskOptions{
		TagPrefix:  DefaultWorkerTagPrefix,
		RetryLimit: DefaultSplitRetryLimit,
		Logger:     logging.NewNoOpLogger(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &SplitTask{opts: opts, runner: runner}
}

// Connect is a no-op.
func (s *SplitTask) Connect(ctx context.Context) error { return nil }

// Cleanup is a no-op.
func (s *SplitTask) Cleanup(ctx context.Context) error { return nil }

// Tools returns the split_to_sub_task declaration.
func (s *SplitTask) Tools(ctx context.Context) ([]llm.Tool, error) {
	return []llm.Tool{{
		ServerName: SplitTaskServerName,
		Name:       SplitTaskToolName,
		Description: "Split the current task into independent sub tasks and run them " +
			"in parallel. Use this when the task decomposes into parts that do not " +
			"depend on each other. Each sub task needs its own system prompt and query.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"tasks": map[string]any{
					"type":        "array",
					"description": "The sub tasks to run in parallel.",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"system": map[string]any{
								"type":        "string",
								"description": "System prompt for the sub agent.",
							},
							"query": map[string]any{
								"type":        "string",
								"description": "The sub task to solve.",
							},
						},
						"required": []string{"system", "query"},
					},
				},
			},
			"required": []string{"tasks"},
		},
	}}, nil
}

// Call parses the task list and runs the fan-out.
func (s *SplitTask) Call(ctx context.Context, name string, args map[string]any) (string, error) {
	if name != SplitTaskToolName {
		return "", NewToolError(name, "not provided by this source", "VALIDATION_ERROR")
	}
	tasks, err := parseSubTasks(args)
	if err != nil {
		return "", &ToolError{Tool: name, Message: err.Error(), Code: "VALIDATION_ERROR"}
	}
	if len(tasks) == 0 {
		return "", NewToolError(name, "tasks must not be empty", "VALIDATION_ERROR")
	}
	results := s.run(ctx, tasks)
	parts := make([]string, len(results))
	for i, res := range results {
		parts[i] = res.Content
	}
	return strings.Join(parts, SubTaskSeparator), nil
}

// run dispatches every task concurrently, then keeps re-dispatching only the
// failed subset until everything succeeded or the retry ceiling is reached.
// Successes keep their slot; results stay in input order throughout.
func (s *SplitTask) run(ctx context.Context, tasks []SubTask) []SubTaskResult {
	results := make([]SubTaskResult, len(tasks))
	pending := make([]int, len(tasks))
	for i := range tasks {
		pending[i] = i
	}

	maxRounds := 1 + s.opts.RetryLimit
	for round := 1; round <= maxRounds && len(pending) > 0; round++ {
		s.recordSpawnRound()
		if round > 1 {
			s.opts.Logger.Info("retrying failed sub tasks", "round", round, "pending", len(pending))
		}

		var wg sync.WaitGroup
		for _, idx := range pending {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				tag := fmt.Sprintf("r%d-%s%d", round, s.opts.TagPrefix, idx)
				results[idx] = s.runner(ctx, tag, tasks[idx])
			}(idx)
		}
		wg.Wait()

		var failed []int
		for _, idx := range pending {
			if results[idx].Failed {
				failed = append(failed, idx)
			}
		}
		pending = failed
	}
	return results
}

func (s *SplitTask) recordSpawnRound() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spawnRounds++
}

// SpawnRounds returns how many dispatch rounds have run, retries included.
func (s *SplitTask) SpawnRounds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spawnRounds
}

// SplitAggregate splits a joined sub task aggregate back into the per-child
// outputs.
func SplitAggregate(aggregate string) []string {
	return strings.Split(aggregate, SubTaskSeparator)
}

func parseSubTasks(args map[string]any) ([]SubTask, error) {
	rawTasks, ok := args["tasks"]
	if !ok {
		return nil, fmt.Errorf("missing required field tasks")
	}
	raw, err := json.Marshal(rawTasks)
	if err != nil {
		return nil, fmt.Errorf("encode tasks: %w", err)
	}
	var tasks []SubTask
	if err := json.Unmarshal(raw, &tasks); err != nil {
		return nil, fmt.Errorf("tasks must be a list of {system, query} objects: %w", err)
	}
	for i, t := range tasks {
		if t.Query == "" {
			return nil, fmt.Errorf("task %d has an empty query", i)
		}
	}
	return tasks, nil
}
