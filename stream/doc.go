// Package stream defines the unified event taxonomy that every backend's
// native vocabulary normalizes into.
//
// # Background
//
// Each backend CLI or SDK emits its own event shapes (Claude's stream-json
// messages, Codex proto notifications, Cursor's NDJSON). Consumers should
// not have to know which backend produced a run, so each backend package
// maps its native events into stream.Event, a single tagged variant.
//
// # Design
//
//   - One struct, tagged by Kind: variant-specific fields are flattened and
//     omitempty, so the wire shape stays a flat JSON object. A closed
//     interface hierarchy was rejected because remote consumers read these
//     events as newline-delimited JSON, where a flat tagged object is the
//     natural encoding.
//
//   - Original payload retention: every event carries the untranslated
//     backend line in Original for audit and debugging. Normalizers never
//     synthesize events without attaching the line that produced them,
//     except for the synthesized terminal Done.
//
//   - Ordering contract: within one run, at most one Init arrives first and
//     exactly one terminal event (Done, or Error optionally preceded by
//     Cancelled) arrives last. Kind.Terminal reports which kinds close a
//     stream. The run layer enforces this; the taxonomy only names it.
//
// The package also hosts the structured-output helpers (schema
// serialization, JSON extraction from prose) because they operate on final
// message text, which is taxonomy-level data.
package stream
