package promptgraph

import (
	"cmp"
	"slices"
	"strconv"
	"strings"
)

// PromptNode is one report section: the prompt sent to the generation backend
// and its position in the dependency graph. ParentIDs and ChildIDs are sorted
// with CompareIDs. ChildIDs is derived from the edges and never authored.
type PromptNode struct {
	ID          string   `json:"id"`
	SectionName string   `json:"section_name"`
	PromptText  string   `json:"prompt_text"`
	IsSystem    bool     `json:"is_system"`
	ParentIDs   []string `json:"parent_ids"`
	ChildIDs    []string `json:"child_ids"`
}

// Edge is a single parent -> child dependency.
type Edge struct {
	From string `json:"source"`
	To   string `json:"target"`
}

// PromptGraph is a validated, immutable DAG of prompt nodes. It is safe for
// concurrent use by any number of tasks; accessors return copies.
type PromptGraph struct {
	nodes            map[string]*PromptNode
	sortedIDs        []string
	topologicalOrder []string
	edges            []Edge
}

// Len returns the number of nodes.
func (graph *PromptGraph) Len() int {
	return len(graph.nodes)
}

// IDs returns every node id in ascending order.
func (graph *PromptGraph) IDs() []string {
	return slices.Clone(graph.sortedIDs)
}

// Node returns a copy of the node with the given id.
func (graph *PromptGraph) Node(nodeID string) (PromptNode, bool) {
	promptNode, exists := graph.nodes[nodeID]
	if !exists {
		return PromptNode{}, false
	}
	nodeCopy := *promptNode
	nodeCopy.ParentIDs = slices.Clone(promptNode.ParentIDs)
	nodeCopy.ChildIDs = slices.Clone(promptNode.ChildIDs)
	return nodeCopy, true
}

// Parents returns the direct parents of a node in ascending id order.
func (graph *PromptGraph) Parents(nodeID string) []string {
	if promptNode, exists := graph.nodes[nodeID]; exists {
		return slices.Clone(promptNode.ParentIDs)
	}
	return nil
}

// Children returns the direct children of a node in ascending id order.
func (graph *PromptGraph) Children(nodeID string) []string {
	if promptNode, exists := graph.nodes[nodeID]; exists {
		return slices.Clone(promptNode.ChildIDs)
	}
	return nil
}

// Roots returns the nodes without parents in ascending id order.
func (graph *PromptGraph) Roots() []string {
	roots := make([]string, 0)
	for _, nodeID := range graph.sortedIDs {
		if len(graph.nodes[nodeID].ParentIDs) == 0 {
			roots = append(roots, nodeID)
		}
	}
	return roots
}

// TopologicalOrder returns the deterministic Kahn ordering computed at load:
// among nodes whose parents are all placed, the smallest id comes first.
func (graph *PromptGraph) TopologicalOrder() []string {
	return slices.Clone(graph.topologicalOrder)
}

// Edges returns all edges sorted by (From, To).
func (graph *PromptGraph) Edges() []Edge {
	return slices.Clone(graph.edges)
}

// Descendants returns every strict descendant of nodeID in ascending order.
func (graph *PromptGraph) Descendants(nodeID string) []string {
	return graph.walk(nodeID, func(promptNode *PromptNode) []string { return promptNode.ChildIDs })
}

// Ancestors returns every strict ancestor of nodeID in ascending order.
func (graph *PromptGraph) Ancestors(nodeID string) []string {
	return graph.walk(nodeID, func(promptNode *PromptNode) []string { return promptNode.ParentIDs })
}

func (graph *PromptGraph) walk(startID string, next func(*PromptNode) []string) []string {
	startNode, exists := graph.nodes[startID]
	if !exists {
		return nil
	}

	visited := make(map[string]bool)
	frontier := slices.Clone(next(startNode))
	for len(frontier) > 0 {
		currentID := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]
		if visited[currentID] {
			continue
		}
		visited[currentID] = true
		frontier = append(frontier, next(graph.nodes[currentID])...)
	}

	reached := make([]string, 0, len(visited))
	for nodeID := range visited {
		reached = append(reached, nodeID)
	}
	SortIDs(reached)
	return reached
}

// VisualNode is a node in the visualization-oriented serialization.
type VisualNode struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	System bool   `json:"system,omitempty"`
}

// Visualization is the graph shape sent to live subscribers and stored with
// saved records: nodes labelled by section name, and source/target links.
type Visualization struct {
	Nodes []VisualNode `json:"nodes"`
	Links []Edge       `json:"links"`
}

// Visualization renders the graph for front-end display. The output is
// deterministic: nodes ascending by id, links sorted by (source, target).
func (graph *PromptGraph) Visualization() Visualization {
	visualNodes := make([]VisualNode, 0, len(graph.sortedIDs))
	for _, nodeID := range graph.sortedIDs {
		promptNode := graph.nodes[nodeID]
		visualNodes = append(visualNodes, VisualNode{
			ID:     promptNode.ID,
			Label:  promptNode.SectionName,
			System: promptNode.IsSystem,
		})
	}
	return Visualization{
		Nodes: visualNodes,
		Links: graph.Edges(),
	}
}

// CompareIDs orders node ids. Ids that parse as integers compare numerically
// and sort before non-numeric ids, which compare lexicographically.
func CompareIDs(idA, idB string) int {
	numberA, errA := strconv.ParseInt(idA, 10, 64)
	numberB, errB := strconv.ParseInt(idB, 10, 64)
	switch {
	case errA == nil && errB == nil:
		if numberA != numberB {
			return cmp.Compare(numberA, numberB)
		}
		return strings.Compare(idA, idB)
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	default:
		return strings.Compare(idA, idB)
	}
}

// SortIDs sorts ids in place with CompareIDs.
func SortIDs(ids []string) {
	slices.SortFunc(ids, CompareIDs)
}

func compareEdges(edgeA, edgeB Edge) int {
	if byFrom := CompareIDs(edgeA.From, edgeB.From); byFrom != 0 {
		return byFrom
	}
	return CompareIDs(edgeA.To, edgeB.To)
}
