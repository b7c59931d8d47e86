// Package ingest is the HTTP collector that receives traces from
// export.Webhook and plugins.Realtime and serves them back to dashboards.
//
// Routes:
//
//	POST /api/ingest       store or merge one trace; {"ok":true}
//	GET  /api/traces       {"traces":[...]} newest first
//	GET  /api/traces/{id}  one trace
//	GET  /api/stream       server-sent events, one trace per event
//	GET  /healthz          liveness
//	GET  /readyz           readiness
//
// A trace posted again under the same traceId is merged into the stored
// one: known spans are updated field by field, spans missing from the new
// payload are kept, and the trace moves to the front. The store keeps at
// most MaxTraces traces and drops any not updated within TTL.
//
// /api routes are guarded by an optional demo token (query, cookie or
// bearer) and an optional HS256 bearer JWT, as minted by signed exporters.
package ingest
