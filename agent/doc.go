// Package agent implements the step loop that drives a conversation with a
// model until the task is done: refine memory, update the plan, call the
// model, dispatch tool calls, repeat. Callbacks observe and steer every
// round, the split_to_sub_task tool lets the model fan a task out to
// concurrently running sub agents, and a shared call limiter bounds the
// model budget across a whole task tree.
package agent
