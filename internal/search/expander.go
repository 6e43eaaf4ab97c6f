package search

import (
	"regexp"
	"strings"
)

// synonyms maps a query token to alternative surface forms commonly used
// in code. Applied token-wise to the lowercased query.
var synonyms = map[string][]string{
	"auth":           {"authentication", "login", "signin", "credential"},
	"authentication": {"auth", "login", "signin", "credential"},
	"login":          {"auth", "signin", "authenticate"},
	"fetch":          {"get", "retrieve", "load", "request", "api"},
	"get":            {"fetch", "retrieve", "load"},
	"error":          {"exception", "err", "failure", "fault"},
	"user":           {"account", "profile", "member"},
	"data":           {"record", "payload", "content"},
	"create":         {"add", "new", "insert", "make"},
	"update":         {"modify", "edit", "change", "patch"},
	"delete":         {"remove", "destroy", "drop"},
	"find":           {"search", "query", "locate", "lookup"},
	"list":           {"all", "enumerate", "collection"},
	"render":         {"draw", "display", "paint"},
	"connect":        {"attach", "link", "join", "bind"},
	"send":           {"emit", "publish", "post", "dispatch"},
	"receive":        {"consume", "subscribe", "listen"},
}

// codePatterns substitutes multi-word phrases with the constructs that
// implement them.
var codePatterns = map[string][]string{
	"error handler":      {"try catch", "exception handling", "catch block"},
	"error handling":     {"try catch", "catch block", "error handler"},
	"http request":       {"fetch", "axios", "api call"},
	"event listener":     {"addEventListener", "on event", "subscribe"},
	"database query":     {"select", "find", "sql"},
	"state management":   {"store", "reducer", "context"},
	"dependency install": {"npm install", "package json"},
}

var camelBoundary = regexp.MustCompile(`([a-z0-9])([A-Z])`)

// Expander rewrites a user query into alternative surface forms for the
// keyword channel. Semantic retrieval embeds the original query only.
type Expander struct{}

// NewExpander creates a query expander.
func NewExpander() *Expander {
	return &Expander{}
}

// Expand returns the original query plus identifier-case splits, known
// synonyms, and code-pattern substitutions, deduplicated in order.
func (e *Expander) Expand(query string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(q string) {
		q = strings.TrimSpace(q)
		if q == "" || seen[q] {
			return
		}
		seen[q] = true
		out = append(out, q)
	}

	add(query)

	// camelCase and snake_case/kebab-case splits, lowercased.
	split := camelBoundary.ReplaceAllString(query, "$1 $2")
	split = strings.NewReplacer("_", " ", "-", " ").Replace(split)
	add(strings.ToLower(split))

	lower := strings.ToLower(query)

	for phrase, subs := range codePatterns {
		if strings.Contains(lower, phrase) {
			for _, sub := range subs {
				add(strings.ReplaceAll(lower, phrase, sub))
			}
		}
	}

	for _, token := range strings.Fields(lower) {
		for _, syn := range synonyms[token] {
			add(strings.ReplaceAll(lower, token, syn))
		}
	}

	return out
}
