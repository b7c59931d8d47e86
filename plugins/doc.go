// Package plugins holds the optional behaviors that attach to a Lens
// through lens.Plugin.
//
//   - AutoTrace exports the active trace once no span has ended for an
//     idle period.
//   - Exporter registers a lens.Exporter.
//   - Ethics annotates every exported trace with transparency analysis.
//   - Network installs HTTP instrumentation on a client.
//   - Realtime pushes debounced snapshots of the live trace to a URL.
//   - Tokenizer swaps the token estimator.
//   - Metrics records finished spans as OpenTelemetry metrics.
//
// Every plugin undoes its setup when the Lens is disposed.
package plugins
