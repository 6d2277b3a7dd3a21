// Package webfetch decorates a [search.Searcher] so hits that arrive with
// only a snippet get their page content fetched and converted to Markdown.
package webfetch
