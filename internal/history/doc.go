// Package history tracks the application's navigation state and dispatches
// URL fragments to registered route handlers.
//
// A History is an explicit service: construct one per host (or per test) and
// hand it to the routers that register on it. The host reports navigation
// through a Location and calls CheckURL whenever the user moves through the
// browser history (the popstate signal).
//
// Fragments are the part of the path after the root. They are matched in
// decoded form: percent escapes are decoded except for reserved characters
// and %25, and the result is NFC normalized so that precomposed and
// decomposed spellings of the same text route identically.
package history
