// Package search defines the context-provider contract used by the fetch
// stage: a [Searcher] turns a [Query] into ranked [Hit]s.
//
// Implementations live in sub-packages: tavily (hosted search API),
// websearch (the self-hosted search service with endpoint discovery) and
// webfetch (a decorator that fills hit content from the page itself).
// polygon supplies the optional per-subject financial context.
package search
