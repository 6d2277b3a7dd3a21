package promptgraph

import (
	"slices"
	"strings"
)

// NodeDefinition is an authored prompt node, before edges are attached.
type NodeDefinition struct {
	ID          string
	SectionName string
	PromptText  string
	IsSystem    bool
}

// chainSeparators are the accepted arrow spellings inside an edge chain.
var chainSeparators = []string{"->", "→"}

// Load builds a PromptGraph from node definitions and chained edge
// declarations. Chains such as "0->1->2" expand into the edges 0->1 and 1->2;
// an edge declared more than once is kept once.
//
// Validation runs in a fixed order so the reported error is deterministic:
// invalid or duplicate node ids, malformed chains, dangling edges, missing
// root, then cycles (self-loops included).
//
// Example:
//
//	graph, err := promptgraph.Load(
//	    []promptgraph.NodeDefinition{
//	        {ID: "0", SectionName: "Persona", PromptText: "You are an analyst.", IsSystem: true},
//	        {ID: "1", SectionName: "Overview", PromptText: "Describe the company."},
//	    },
//	    []string{"0->1"},
//	)
func Load(definitions []NodeDefinition, edgeChains []string) (*PromptGraph, error) {
	nodes := make(map[string]*PromptNode, len(definitions))
	for index, definition := range definitions {
		nodeID := strings.TrimSpace(definition.ID)
		if nodeID == "" {
			return nil, &InvalidNodeError{Index: index, Reason: "missing id"}
		}
		if _, exists := nodes[nodeID]; exists {
			return nil, &DuplicateIDError{NodeID: nodeID}
		}
		nodes[nodeID] = &PromptNode{
			ID:          nodeID,
			SectionName: definition.SectionName,
			PromptText:  definition.PromptText,
			IsSystem:    definition.IsSystem,
			ParentIDs:   make([]string, 0),
			ChildIDs:    make([]string, 0),
		}
	}

	edges, err := expandChains(edgeChains)
	if err != nil {
		return nil, err
	}

	for _, graphEdge := range edges {
		if _, exists := nodes[graphEdge.From]; !exists {
			return nil, &DanglingEdgeError{From: graphEdge.From, To: graphEdge.To, MissingID: graphEdge.From}
		}
		if _, exists := nodes[graphEdge.To]; !exists {
			return nil, &DanglingEdgeError{From: graphEdge.From, To: graphEdge.To, MissingID: graphEdge.To}
		}
	}

	for _, graphEdge := range edges {
		nodes[graphEdge.From].ChildIDs = append(nodes[graphEdge.From].ChildIDs, graphEdge.To)
		nodes[graphEdge.To].ParentIDs = append(nodes[graphEdge.To].ParentIDs, graphEdge.From)
	}

	sortedIDs := make([]string, 0, len(nodes))
	for nodeID, promptNode := range nodes {
		sortedIDs = append(sortedIDs, nodeID)
		SortIDs(promptNode.ParentIDs)
		SortIDs(promptNode.ChildIDs)
	}
	SortIDs(sortedIDs)

	hasRoot := false
	for _, promptNode := range nodes {
		if len(promptNode.ParentIDs) == 0 {
			hasRoot = true
			break
		}
	}
	if !hasRoot {
		return nil, &NoRootError{}
	}

	topologicalOrder, err := kahnOrder(nodes, sortedIDs)
	if err != nil {
		return nil, err
	}

	return &PromptGraph{
		nodes:            nodes,
		sortedIDs:        sortedIDs,
		topologicalOrder: topologicalOrder,
		edges:            edges,
	}, nil
}

// ParseChain splits one chain declaration into its pairwise edges.
func ParseChain(chain string) ([]Edge, error) {
	normalized := chain
	for _, separator := range chainSeparators[1:] {
		normalized = strings.ReplaceAll(normalized, separator, chainSeparators[0])
	}

	parts := strings.Split(normalized, chainSeparators[0])
	if len(parts) < 2 {
		return nil, &MalformedChainError{Chain: chain}
	}

	nodeIDs := make([]string, 0, len(parts))
	for _, part := range parts {
		nodeID := strings.TrimSpace(part)
		if nodeID == "" {
			return nil, &MalformedChainError{Chain: chain}
		}
		nodeIDs = append(nodeIDs, nodeID)
	}

	edges := make([]Edge, 0, len(nodeIDs)-1)
	for index := 0; index+1 < len(nodeIDs); index++ {
		edges = append(edges, Edge{From: nodeIDs[index], To: nodeIDs[index+1]})
	}
	return edges, nil
}

// expandChains parses every chain and returns the distinct edges sorted by
// (From, To).
func expandChains(edgeChains []string) ([]Edge, error) {
	seen := make(map[Edge]bool)
	edges := make([]Edge, 0, len(edgeChains))

	for _, chain := range edgeChains {
		chainEdges, err := ParseChain(chain)
		if err != nil {
			return nil, err
		}
		for _, graphEdge := range chainEdges {
			if seen[graphEdge] {
				continue
			}
			seen[graphEdge] = true
			edges = append(edges, graphEdge)
		}
	}

	slices.SortFunc(edges, compareEdges)
	return edges, nil
}

// kahnOrder runs Kahn's algorithm, always taking the smallest available id
// next. Nodes left with unmet parents form (or sit behind) a cycle.
func kahnOrder(nodes map[string]*PromptNode, sortedIDs []string) ([]string, error) {
	inDegree := make(map[string]int, len(nodes))
	available := make([]string, 0)
	for _, nodeID := range sortedIDs {
		inDegree[nodeID] = len(nodes[nodeID].ParentIDs)
		if inDegree[nodeID] == 0 {
			available = append(available, nodeID)
		}
	}

	topologicalOrder := make([]string, 0, len(nodes))
	for len(available) > 0 {
		currentID := available[0]
		available = available[1:]
		topologicalOrder = append(topologicalOrder, currentID)

		for _, childID := range nodes[currentID].ChildIDs {
			inDegree[childID]--
			if inDegree[childID] == 0 {
				available = append(available, childID)
			}
		}
		SortIDs(available)
	}

	if len(topologicalOrder) != len(nodes) {
		cycleNodes := make([]string, 0)
		for _, nodeID := range sortedIDs {
			if inDegree[nodeID] > 0 {
				cycleNodes = append(cycleNodes, nodeID)
			}
		}
		return nil, &CycleError{NodeIDs: cycleNodes}
	}

	return topologicalOrder, nil
}
