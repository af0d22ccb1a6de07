// Package metrics provides application-level counters using stdlib expvar.
// Counters are exported on the /debug/vars endpoint of the API server.
package metrics

import "expvar"

// Embedding counters.
var (
	EmbedCalls        = expvar.NewInt("embedding_calls_total")
	EmbedTexts        = expvar.NewInt("embedding_texts_total")
	GraphwiseBatches  = expvar.NewInt("graphwise_batches_total")
	GraphwiseFailures = expvar.NewInt("graphwise_rpc_failures_total")
	GraphwiseAuthFail = expvar.NewInt("graphwise_auth_failures_total")
	PoolCallerRuns    = expvar.NewInt("graphwise_pool_caller_runs_total")
	APIRequests       = expvar.NewInt("api_requests_total")
)

// Inc increments the given counter by 1.
func Inc(counter *expvar.Int) { counter.Add(1) }

// Add increments the given counter by n.
func Add(counter *expvar.Int, n int) { counter.Add(int64(n)) }
