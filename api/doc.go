// Package api exposes the query engine over HTTP.
//
// Routes:
//
//	POST /api/search  {query, top_k, mood, min_rating} -> {results, total, query_time}
//	GET  /api/moods   -> {moods}
//	GET  /api/stats   -> index statistics
//	GET  /healthz     -> 200 once an index is loaded, 503 before
//	GET  /metrics     -> Prometheus metrics
//
// Invalid arguments map to 400, a missing index to 503 and embedding
// failures to 502.
package api
