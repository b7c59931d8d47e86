package ingest_test

import (
	"context"
	"fmt"
	"time"

	"github.com/jonwraymond/tylolens/ingest"
	"github.com/jonwraymond/tylolens/lens"
)

func ExampleMemoryStore() {
	ctx := context.Background()
	store := ingest.NewMemoryStore(2, time.Hour)
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, id := range []string{"a", "b", "c"} {
		_, _ = store.Put(ctx, &lens.Trace{
			TraceID:   id,
			App:       lens.AppInfo{Name: "checkout"},
			StartedAt: start,
			Spans:     []*lens.Span{},
		})
	}
	for _, t := range store.List(ctx) {
		fmt.Println(t.TraceID)
	}
	// Output:
	// c
	// b
}
