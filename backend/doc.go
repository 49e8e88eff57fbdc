// Package backend defines the provider-agnostic surface of the run engine:
// the Adapter contract, per-conversation Thread state with its single
// active-run invariant, the request/result types, and the registry mapping
// backend names to adapter constructors.
//
// Backend packages (claude, codex, cursor) compose a Core with their
// launcher and normalizer; nothing outside that composition layer branches
// on backend identity.
package backend
