// Package sage implements the advisory agent: free-form queries and
// structured decision contexts are turned into ranked, explainable
// recommendations, optionally via weighted multi-criteria scoring over
// supplied alternatives. The sage maintains a keyed knowledge base and a
// bounded recommendation history, and can consult a configured language
// model for richer reasoning text on free-form queries.
package sage
