// Package auth authenticates requests to the trace ingestion server and
// signs the requests that exporters send to it.
//
// Two credential kinds are understood. A demo token is a shared secret
// accepted from the "token" query parameter, the tylo_demo_token cookie or
// a bearer header; it gates a public demo dashboard. A JWT is an HS256
// bearer token, normally minted by a Signer inside a webhook exporter and
// verified by JWTAuthenticator on the receiving side.
//
// Authenticators are combined with CompositeAuthenticator and applied to
// an http.Handler with Middleware.
package auth
