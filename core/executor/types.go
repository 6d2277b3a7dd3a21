package executor

import (
	"context"

	"github.com/luislascano01/Stratvithor/core/promptgraph"
	"github.com/luislascano01/Stratvithor/core/task"
	"github.com/luislascano01/Stratvithor/providers/search"
	"github.com/luislascano01/Stratvithor/providers/search/polygon"
)

// SystemNodeText is the result text of every system node.
const SystemNodeText = "**This is a system prompt**"

// RawData is what the fetch stage hands to the mold stage.
type RawData struct {
	Query       search.Query     `json:"query"`
	Hits        []search.Hit     `json:"hits"`
	Financial   *polygon.Profile `json:"financial,omitempty"`
	Placeholder bool             `json:"placeholder,omitempty"`
}

// ParentOutput is one completed ancestor as seen by a node.
type ParentOutput struct {
	NodeID      string       `json:"node_id"`
	SectionName string       `json:"section_name"`
	PromptText  string       `json:"prompt_text"`
	IsSystem    bool         `json:"is_system"`
	Result      *task.Result `json:"result,omitempty"`
}

// Accumulated is the context a node is executed with.
type Accumulated struct {
	TaskID  string       `json:"task_id"`
	Subject string       `json:"subject"`
	Options task.Options `json:"options"`

	// Parents are the node's completed parents, ordered by node id.
	Parents []ParentOutput `json:"parents"`

	// Lineage is every ancestor of the node in topological order. Molders
	// build the conversation history from it.
	Lineage []ParentOutput `json:"lineage"`
}

// Fetcher gathers external context for a node.
type Fetcher interface {
	Fetch(ctx context.Context, node promptgraph.PromptNode, accumulated Accumulated) (RawData, error)
}

// Molder produces a node's section from its raw data and accumulated context.
type Molder interface {
	Mold(ctx context.Context, node promptgraph.PromptNode, raw RawData, accumulated Accumulated) (*task.Result, error)
}

// FetchFunc adapts a function to Fetcher.
type FetchFunc func(ctx context.Context, node promptgraph.PromptNode, accumulated Accumulated) (RawData, error)

// Fetch calls the function.
func (fn FetchFunc) Fetch(ctx context.Context, node promptgraph.PromptNode, accumulated Accumulated) (RawData, error) {
	return fn(ctx, node, accumulated)
}

// MoldFunc adapts a function to Molder.
type MoldFunc func(ctx context.Context, node promptgraph.PromptNode, raw RawData, accumulated Accumulated) (*task.Result, error)

// Mold calls the function.
func (fn MoldFunc) Mold(ctx context.Context, node promptgraph.PromptNode, raw RawData, accumulated Accumulated) (*task.Result, error) {
	return fn(ctx, node, raw, accumulated)
}

func sectionTitle(node promptgraph.PromptNode) string {
	if node.SectionName != "" {
		return node.SectionName
	}
	return "Section " + node.ID
}
