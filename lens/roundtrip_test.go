package lens

import (
	"context"
	"encoding/json"
	"reflect"
	"testing"

	"github.com/jonwraymond/tylolens/pricing"
)

func TestTrace_JSONRoundTrip(t *testing.T) {
	build := map[string]func(*Lens){
		"empty": func(*Lens) {},
		"single": func(l *Lens) {
			h, _ := l.StartSpan(context.Background(), SpanStart{Kind: KindTool, Name: "only"})
			h.End(SpanEnd{})
		},
		"nested": func(l *Lens) {
			ctx := context.Background()
			_ = l.WithSpan(ctx, SpanStart{Kind: KindTool, Name: "agent"}, func(ctx context.Context) error {
				call := l.WrapLLM("m", echo)
				if _, err := call(ctx, LLMRequest{
					Prompt:   "mail a@b.co",
					Messages: []any{map[string]any{"role": "user", "content": "mail a@b.co"}},
				}); err != nil {
					return err
				}
				h, _ := l.StartSpan(ctx, SpanStart{
					Kind:  KindHTTP,
					Name:  "POST /v1/chat",
					Input: &SpanInput{Request: &HTTPRequest{URL: "https://api.test/v1/chat", Method: "POST"}},
					Meta:  map[string]any{"attempt": "1"},
				})
				h.End(SpanEnd{Output: &SpanOutput{Response: &HTTPResponse{
					Status:  200,
					Headers: map[string]string{"content-type": "application/json"},
				}}})
				return nil
			})
		},
	}

	for name, fn := range build {
		t.Run(name, func(t *testing.T) {
			l := newTestLens(t, func(c *Config) {
				c.Pricing = pricing.Table{"m": {PricePer1KInput: 1, PricePer1KOutput: 2}}
			})
			l.StartTrace()
			fn(l)
			tr, err := l.ExportTrace()
			if err != nil {
				t.Fatal(err)
			}

			data, err := json.Marshal(tr)
			if err != nil {
				t.Fatal(err)
			}
			var back Trace
			if err := json.Unmarshal(data, &back); err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(tr, &back) {
				t.Errorf("round trip mismatch\n got: %s", data)
			}
		})
	}
}
