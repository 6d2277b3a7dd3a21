package promptgraph

import (
	"errors"
	"fmt"
	"strings"
)

// ErrGraphDefinition is the common cause of every load-time validation error.
var ErrGraphDefinition = errors.New("invalid graph definition")

// ErrDefinitionNotFound is returned by a Catalog for unknown definition ids.
var ErrDefinitionNotFound = errors.New("graph definition not found")

// GraphDefinitionError is implemented by every load-time validation error,
// so callers can tell a bad definition from any other failure:
//
//	var definitionErr promptgraph.GraphDefinitionError
//	if errors.As(err, &definitionErr) { ... }
type GraphDefinitionError interface {
	error
	graphDefinition()
}

// DuplicateIDError reports a node id declared more than once.
type DuplicateIDError struct {
	NodeID string
}

func (err *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate node id %q", err.NodeID)
}

func (err *DuplicateIDError) Unwrap() error { return ErrGraphDefinition }

func (*DuplicateIDError) graphDefinition() {}

// DanglingEdgeError reports an edge whose endpoint does not resolve to a node.
type DanglingEdgeError struct {
	From      string
	To        string
	MissingID string
}

func (err *DanglingEdgeError) Error() string {
	return fmt.Sprintf("edge %s->%s references unknown node %q", err.From, err.To, err.MissingID)
}

func (err *DanglingEdgeError) Unwrap() error { return ErrGraphDefinition }

func (*DanglingEdgeError) graphDefinition() {}

// CycleError reports that no topological ordering exists. NodeIDs lists the
// nodes that could not be ordered, ascending.
type CycleError struct {
	NodeIDs []string
}

func (err *CycleError) Error() string {
	return fmt.Sprintf("cycle detected in graph involving nodes: [%s]", strings.Join(err.NodeIDs, " "))
}

func (err *CycleError) Unwrap() error { return ErrGraphDefinition }

func (*CycleError) graphDefinition() {}

// NoRootError reports a graph in which every node has at least one parent,
// including the empty graph.
type NoRootError struct{}

func (err *NoRootError) Error() string {
	return "graph has no root node"
}

func (err *NoRootError) Unwrap() error { return ErrGraphDefinition }

func (*NoRootError) graphDefinition() {}

// MalformedChainError reports an edge chain that does not name at least two
// non-empty node ids.
type MalformedChainError struct {
	Chain string
}

func (err *MalformedChainError) Error() string {
	return fmt.Sprintf("malformed edge chain %q", err.Chain)
}

func (err *MalformedChainError) Unwrap() error { return ErrGraphDefinition }

func (*MalformedChainError) graphDefinition() {}

// InvalidNodeError reports a node definition that cannot be used at all,
// such as one without an id.
type InvalidNodeError struct {
	Index  int
	Reason string
}

func (err *InvalidNodeError) Error() string {
	return fmt.Sprintf("node definition #%d: %s", err.Index, err.Reason)
}

func (err *InvalidNodeError) Unwrap() error { return ErrGraphDefinition }

func (*InvalidNodeError) graphDefinition() {}
