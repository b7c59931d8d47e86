// Package health provides the liveness and readiness probes of the
// tylolens ingest server.
//
// A Checker reports one component. An Aggregator runs its checkers
// concurrently under a deadline and folds them into one Status: any
// unhealthy check makes the whole unhealthy, otherwise any degraded check
// degrades it.
//
//	agg := health.NewAggregator()
//	agg.Register(health.NewCheckerFunc("store", func(ctx context.Context) health.Result {
//	    return health.Healthy("ok")
//	}))
//
//	mux.Handle("GET /healthz", health.LivenessHandler())
//	mux.Handle("GET /readyz", health.ReadinessHandler(agg))
package health
