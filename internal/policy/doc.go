// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package policy holds the four static name tables that classify built-in
// components for deferred activation.
//
// # Tables
//
//   - Eligible: components whose initialization may be deferred until a load
//     request names them.
//
//   - AlreadyActive: components compiled into the node without an init routine.
//     A load request for one of them is a harmless no-op rather than an error.
//
//   - Excluded: components that always initialize eagerly. The coordinator never
//     touches them, even if they also appear in Eligible.
//
//   - Tail: a subset of Eligible that runs only after every other Eligible
//     component has run.
//
// Tables are validated once at construction and are immutable afterwards. All
// queries are plain set-membership checks and are safe for concurrent use.
package policy
