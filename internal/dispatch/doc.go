// Package dispatch is the externally triggered entry point for load requests.
//
// Two request shapes are supported, mirroring how components are loaded on a
// conventional system: InitModule takes the image bytes directly, FinitModule
// reads them from an open file and accepts validation flags. Both require the
// module-management capability and both end by handing the extracted
// component name to the coordinator.
//
// Requests that arrive after every deferred component has been activated are
// answered successfully without reading or parsing anything.
package dispatch
