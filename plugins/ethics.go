package plugins

import (
	"github.com/jonwraymond/tylolens/ethics"
	"github.com/jonwraymond/tylolens/lens"
)

// Ethics annotates every exported trace with per-span analysis and the
// trace transparency score. Zero weights select their ethics.DefaultWeights
// value field by field.
func Ethics(w ethics.Weights) lens.Plugin {
	scorer := ethics.NewScorer(w)
	return lens.PluginFunc("ethics", func(pc lens.PluginContext) (func(), error) {
		sub := pc.On(lens.EventExport, func(ev lens.Event) {
			scorer.Annotate(ev.Trace)
		})
		return sub.Unsubscribe, nil
	})
}
