// Package server exposes the load-request dispatch path over HTTP.
//
// Routes:
//
//	POST /v1/modules        body is a component image, ?args= passes parameters
//	POST /v1/modules/file   JSON {"path", "args", "flags"}, the server opens path
//	GET  /v1/status         completion flag and registry entries
//	GET  /health            liveness
//
// Callers holding the admin bearer token are granted module management. When
// no token is configured, loopback peers are granted it instead.
package server
