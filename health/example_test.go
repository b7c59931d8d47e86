package health_test

import (
	"context"
	"fmt"

	"github.com/jonwraymond/tylolens/health"
)

func ExampleAggregator() {
	agg := health.NewAggregator()
	agg.Register(health.NewCheckerFunc("store", func(context.Context) health.Result {
		return health.Healthy("12 traces")
	}))
	agg.Register(health.NewCheckerFunc("upstream", func(context.Context) health.Result {
		return health.Degraded("slow")
	}))

	report := agg.CheckAll(context.Background())
	fmt.Println(report.Status)
	fmt.Println(report.Checks["store"].Message)
	// Output:
	// degraded
	// 12 traces
}
