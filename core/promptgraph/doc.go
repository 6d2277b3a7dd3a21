// Package promptgraph loads report definitions into immutable prompt graphs.
//
// A definition is a set of prompt nodes (id, section header, prompt body and a
// system-only flag) plus a list of chained edge declarations such as
// "0->1->2". [Load] expands the chains into parent/child relations once,
// validates the result and returns a [PromptGraph] that the execution engine
// operates on without further parsing.
//
// Validation rejects duplicate ids, edges that reference unknown nodes,
// graphs in which every node has a parent, and cycles. Every such failure
// satisfies errors.Is(err, ErrGraphDefinition) and can be inspected with
// errors.As against the concrete error types.
//
// Definitions are usually read from a directory by a [Catalog], which accepts
// YAML (*.yaml, *.yml) and HCL (*.hcl) files:
//
//	prompts:
//	  overview:
//	    id: 0
//	    section_name: Company Overview
//	    text: Describe the company.
//	    system: false
//	prompt_dag:
//	  - "0->1->2"
package promptgraph
