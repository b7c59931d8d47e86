package plugins

import (
	"context"
	"net/http"

	"github.com/jonwraymond/tylolens/intercept"
	"github.com/jonwraymond/tylolens/lens"
	"github.com/jonwraymond/tylolens/observe"
)

// NetworkOptions configures Network.
type NetworkOptions struct {
	// Client is instrumented in place. Default: http.DefaultClient.
	Client *http.Client

	// Options tune the installed transport.
	Options []intercept.Option
}

// Network installs HTTP instrumentation on opts.Client for the life of
// the Lens. Setup fails if the client is already instrumented.
func Network(opts NetworkOptions) lens.Plugin {
	return lens.PluginFunc("instrumentation:network", func(pc lens.PluginContext) (func(), error) {
		uninstall, err := intercept.Install(pc, opts.Client, opts.Options...)
		if err != nil {
			return nil, err
		}
		return func() {
			if err := uninstall(); err != nil {
				pc.Logger().Warn(context.Background(), "uninstall failed",
					observe.F("plugin", "instrumentation:network"),
					observe.Err(err),
				)
			}
		}, nil
	})
}
