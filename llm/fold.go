package llm

import "sort"

// Fold merges a sequence of streaming fragments into one complete assistant
// message. Content and reasoning deltas are concatenated in arrival order and
// tool call fragments are merged by their Index: names and ids take the last
// non-empty value, argument deltas are concatenated. The input fragments are
// never mutated.
func Fold(fragments []Message) Message {
	var content, reasoning, id string
	calls := map[int]*ToolCall{}

	for _, f := range fragments {
		content += f.Content
		reasoning += f.Reasoning
		if f.ID != "" {
			id = f.ID
		}
		for _, tc := range f.ToolCalls {
			agg, ok := calls[tc.Index]
			if !ok {
				agg = &ToolCall{Index: tc.Index, Type: "function"}
				calls[tc.Index] = agg
			}
			if tc.ID != "" {
				agg.ID = tc.ID
			}
			if tc.Name != "" {
				agg.Name = tc.Name
			}
			agg.Arguments += tc.Arguments
		}
	}

	indexes := make([]int, 0, len(calls))
	for idx := range calls {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	var toolCalls []ToolCall
	for _, idx := range indexes {
		toolCalls = append(toolCalls, *calls[idx])
	}

	return Message{
		Role:      RoleAssistant,
		Content:   content,
		Reasoning: reasoning,
		ToolCalls: toolCalls,
		ID:        id,
	}
}

// Collect drains a fragment stream and folds it into the final message. It
// returns the stream error, if any, once both channels are exhausted.
func Collect(fragments <-chan Message, errCh <-chan error) (*Message, error) {
	var parts []Message
	for f := range fragments {
		parts = append(parts, f)
	}
	if err, ok := <-errCh; ok && err != nil {
		return nil, err
	}
	msg := Fold(parts)
	return &msg, nil
}
