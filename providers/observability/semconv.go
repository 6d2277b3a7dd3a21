package observability

// Attribute keys, span names and metric names shared by every component.

// --- Task and node attributes ---

const (
	// AttrTaskID is the id of the report-generation task
	AttrTaskID = "task.id"

	// AttrDefinitionID is the graph definition a task was created from
	AttrDefinitionID = "task.definition_id"

	// AttrNodeID is the id of a graph node
	AttrNodeID = "node.id"

	// AttrNodeSection is the section name of a graph node
	AttrNodeSection = "node.section"

	// AttrNodeStatus is the status a node moved to
	AttrNodeStatus = "node.status"

	// AttrNodeCount is the number of nodes in a graph
	AttrNodeCount = "node.count"

	// AttrSubscriberID identifies a progress subscriber
	AttrSubscriberID = "subscriber.id"

	// AttrDropped is the number of events a subscriber lost to overflow
	AttrDropped = "subscriber.dropped"
)

// --- Executor attributes ---

const (
	// AttrStage is the executor stage: "fetch" or "mold"
	AttrStage = "executor.stage"

	// AttrAttempt is the 1-based attempt number of a retried call
	AttrAttempt = "executor.attempt"

	// AttrHits is the number of search hits fetched
	AttrHits = "executor.hits"

	// AttrSearchQuery is the query sent to a search provider
	AttrSearchQuery = "search.query"

	// AttrSearchProvider names the search provider
	AttrSearchProvider = "search.provider"
)

// --- LLM attributes ---

const (
	// AttrLLMModel is the model identifier (e.g., "gpt-4o")
	AttrLLMModel = "llm.model"

	// AttrLLMFinishReason is the reason the generation finished
	AttrLLMFinishReason = "llm.finish_reason"

	// AttrLLMTokensTotal is the total number of tokens
	AttrLLMTokensTotal = "llm.tokens.total" // #nosec G101 -- Not a credential, token refers to LLM tokens

	// AttrRequestMessagesCount is the number of messages in the request
	AttrRequestMessagesCount = "request.messages_count"
)

// --- HTTP Attributes ---

const (
	// AttrHTTPMethod is the HTTP method (GET, POST, etc.)
	AttrHTTPMethod = "http.method"

	// AttrHTTPStatusCode is the HTTP response status code
	AttrHTTPStatusCode = "http.status_code"

	// AttrHTTPURL is the full request URL
	AttrHTTPURL = "http.url"

	// AttrHTTPRoute is the matched server route
	AttrHTTPRoute = "http.route"

	// AttrHTTPRequestBodySize is the request body size in bytes
	AttrHTTPRequestBodySize = "http.request.body.size"

	// AttrHTTPResponseBodySize is the response body size in bytes
	AttrHTTPResponseBodySize = "http.response.body.size"
)

// --- General Attributes ---

const (
	// AttrError is the error message
	AttrError = "error"

	// AttrDuration is the operation duration
	AttrDuration = "duration"

	// AttrStatus is the operation status
	AttrStatus = "status"

	// AttrStatusDescription is the status description
	AttrStatusDescription = "status_description"
)

// --- Span Names ---

const (
	// SpanTaskRun covers one task from start to its last terminal node
	SpanTaskRun = "engine.task.run"

	// SpanNodeExecute covers one node's fetch and mold
	SpanNodeExecute = "engine.node.execute"

	// SpanFetch covers the fetch stage of a node
	SpanFetch = "executor.fetch"

	// SpanMold covers the mold stage of a node
	SpanMold = "executor.mold"

	// SpanStoreSave covers persisting a saved task record
	SpanStoreSave = "store.save"
)

// --- Event Names ---

const (
	// EventRetry marks a retried fetch attempt
	EventRetry = "executor.retry"

	// EventNodeBlocked marks descendants blocked after a failure
	EventNodeBlocked = "engine.node.blocked"

	// EventSubscriberOverflow marks a dropped event on a full subscriber queue
	EventSubscriberOverflow = "publisher.overflow"
)

// --- Metric Names ---

const (
	// MetricNodeDuration is the histogram of node execution time in seconds
	MetricNodeDuration = "stratvithor.engine.node.duration"

	// MetricNodeCount counts nodes reaching a terminal status, by status
	MetricNodeCount = "stratvithor.engine.node.count"

	// MetricTaskDuration is the histogram of task wall time in seconds
	MetricTaskDuration = "stratvithor.engine.task.duration"

	// MetricFetchRetries counts retried fetch attempts
	MetricFetchRetries = "stratvithor.executor.fetch.retries"

	// MetricPublisherDropped counts events dropped on full subscriber queues
	MetricPublisherDropped = "stratvithor.publisher.dropped"
)
