// Package openai implements [ai.Provider] over the OpenAI chat completions API
// using github.com/sashabaranov/go-openai.
//
// The API key is read from OPENAI_API_KEY and the base URL from
// OPENAI_API_BASE_URL; both can be overridden with the With* methods.
package openai
