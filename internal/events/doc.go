// Package events implements the publish/subscribe channel that every bindery
// type embeds.
//
// A Channel stores handlers by event name. Trigger dispatches synchronously,
// first to the handlers bound to the name and then to the handlers bound to
// the wildcard name "all", which receive the event name as their first
// argument.
//
// LISTENER BOOKKEEPING:
//
// ListenTo records the subscription on both sides. The listener keeps a
// listening record per target in listeningTo, and when the target embeds a
// Channel the same record is stored in the target's listeners map under the
// listener's id. Each handler bound through ListenTo points back at its record
// so that Off on the target decrements the shared reference count. When the
// count reaches zero the record is removed from both maps.
//
// Targets that only satisfy Emitter (foreign event systems) cannot take part
// in that protocol. For those the record keeps its own table of the names and
// callbacks it bound and is removed once the table is empty.
//
// Dispatch works on a snapshot of the handler slices taken when Trigger
// starts: handlers added during dispatch do not fire in the same pass, and
// handlers removed during dispatch still do.
package events
