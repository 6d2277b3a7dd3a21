// Package executor is the per-node work seam of the report engine.
//
// A node's work is two pluggable stages: [Fetcher] gathers external context
// (search hits, financial data) and [Molder] turns that context plus the
// outputs of the node's ancestors into a section [task.Result]. [Executor]
// runs both, short-circuits system nodes and validates the result schema at
// its boundary.
//
// Fetchers compose with [FetchMiddleware]s, applied outermost-first:
//
//	fetcher := executor.Chain(
//	    executor.NewSearchFetcher(searcher),
//	    executor.WithLogging(logger),
//	    executor.WithRetry(executor.RetryConfig{}),
//	    executor.WithTimeout(30*time.Second),
//	)
//
// With that order every attempt gets its own timeout and the retry loop sees
// each attempt's failure. Only exhausted or non-transient failures leave the
// seam.
//
// [MockFetcher] and [MockMolder] are deterministic stand-ins used for mock
// tasks and tests.
package executor
