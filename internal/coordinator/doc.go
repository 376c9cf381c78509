// Package coordinator implements deferred activation of built-in components.
//
// # Why Coordinator Exists
//
// A node carries many built-in components whose init routines would normally run
// eagerly at startup. The coordinator lets those routines be deferred: each one
// runs only when an external load request names its component. Startup gets
// shorter, and boot-only resources can be released as soon as every deferred
// routine has run.
//
// # How It Works
//
// The coordinator owns a fixed-capacity registry (an arena of entries indexed by
// position) and a two-state completion machine {Pending, Completed}:
//
//  1. Registration: built-in modules offer their routines through Register.
//     Excluded names are rejected, Eligible names get an entry (Tail class if
//     listed as tail), everything else is ignored. Names are compared in
//     policy.Canonical form, so dashes and underscores are interchangeable.
//  2. Activation: Activate looks a name up (Excluded first, then the registry,
//     then AlreadyActive) and runs the routine at most once.
//  3. Completion: once every Ordinary entry is loaded the machine moves to
//     Completed. The transition's effect runs every Tail entry in table order,
//     then the cleanup hook, exactly once.
//
// A Tail entry named explicitly by a load request runs right away, even before
// completion. Ordering is only guaranteed for tail entries that wait for the
// completion effect; an explicit request is honoured like any other.
//
// Once every Ordinary entry has run, the init routines are dropped so their
// closures can be collected.
//
// After completion every request is answered successfully without side effects.
//
// # Concurrency
//
// One sync.Mutex guards the registry, the loaded flags and the completion state.
// The whole decision sequence, including the init routine itself, is a single
// critical section per request. Init routines therefore must not call Activate;
// they receive a marked context and such calls fail with ErrReentrant instead of
// deadlocking.
//
// Completed and Done may be read without the lock. They are published only
// after the cleanup hook has returned.
package coordinator
