// Package anthropic implements ai.Provider over Anthropic's Messages API.
//
// The Messages API has no developer role and no JSON response mode: system
// and developer messages are folded into the top-level system prompt, runs of
// same-role messages are merged, and a json_object response format becomes
// an instruction appended to the system prompt.
package anthropic
