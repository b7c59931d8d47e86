package plugins

import (
	"github.com/jonwraymond/tylolens/lens"
	"github.com/jonwraymond/tylolens/tokens"
)

// Tokenizer makes e the Lens token estimator. Disposal restores the
// heuristic estimator.
func Tokenizer(e tokens.Estimator) lens.Plugin {
	return lens.PluginFunc("tokenizer", func(pc lens.PluginContext) (func(), error) {
		pc.SetTokenEstimator(e)
		return func() { pc.SetTokenEstimator(nil) }, nil
	})
}
