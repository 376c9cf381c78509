// Package testutil holds helpers shared by tests across packages: thread-safe
// log capture and recording fake components.
package testutil
