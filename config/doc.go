// Package config loads a tylolens YAML file and builds a ready Lens from
// it.
//
// The file is read whole, ${VAR} references are expanded strictly (a
// missing variable is an error, $$ is a literal dollar), and the result is
// decoded over Default. TYLOLENS_* environment variables then override a
// few deployment fields:
//
//	TYLOLENS_APP            app.name
//	TYLOLENS_ENV            app.environment
//	TYLOLENS_LOG_LEVEL      observe.logging.level (and enables logging)
//	TYLOLENS_READ_ONLY      ingest.readOnly ("1" or "true")
//	TYLOLENS_DEMO_TOKEN     ingest.demoToken
//	TYLOLENS_INGEST_SECRET  ingest.secret
//	TYLOLENS_ADDR           ingest.addr
//
// File.Build wires the exporters and plugins the file enables.
package config
