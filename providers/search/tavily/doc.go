// Package tavily implements [search.Searcher] over the Tavily search API.
//
// The API key is read from TAVILY_API_KEY unless [WithAPIKey] is given.
package tavily
