// Package app contains the core application logic. It defines the main App
// struct, its configuration, and the node lifecycle: load the policy, run the
// registration phase, then serve load requests until shutdown. It is decoupled
// from any specific entrypoint like a CLI.
package app
