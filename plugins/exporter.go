package plugins

import "github.com/jonwraymond/tylolens/lens"

// Exporter registers e with the Lens. The plugin is named
// "exporter:<name>".
func Exporter(e lens.Exporter) lens.Plugin {
	return lens.PluginFunc("exporter:"+e.Name(), func(pc lens.PluginContext) (func(), error) {
		pc.AddExporter(e)
		return nil, nil
	})
}
