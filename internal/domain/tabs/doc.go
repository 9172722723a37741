// Package tabs owns the set of document contexts and the active pointer.
//
// Invariant: whenever at least one context exists, the active id names one
// of them. Closing the active context moves focus to the first remaining
// context in creation order.
//
// Every load is tagged with a per-context sequence number taken when the
// load is requested. A load that completes after a newer one has been
// applied is discarded, so the last requested fixture wins regardless of
// fetch completion order. A failed fetch leaves the previous content in
// place.
package tabs
