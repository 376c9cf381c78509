// Package registry provides the "glue" between compiled-in components and the
// deferred activation coordinator.
//
// Every built-in component implements Module. During startup the application
// hands each Module a Registrar (the coordinator), and the module offers its
// one-shot init routine under its declared name. The Registrar decides whether
// the routine is deferred; a false return means the component keeps its normal
// eager path, and RegisterAll hands such offers back in Stats.Eager.
//
// Before registration, Validate performs a parity check between the policy
// tables and the compiled modules so that configuration drift is caught at
// startup instead of on the first load request.
package registry
