// Package entity implements Entity, a mutable bag of attributes with change
// tracking, validation and a remote sync lifecycle.
//
// CHANGE ROUNDS:
//
// Set is the only mutation primitive. The outermost Set call snapshots the
// current attributes into previous and clears changed; nested Set calls made
// from change handlers fold into the same round. Each changed key fires
// "change:<key>" immediately, and once control is back in the outermost call
// a single "change" fires for every round that queued changes, looping until
// handlers stop queueing more.
//
// SYNC:
//
// Fetch, Save and Destroy build a transport.Request and block on the
// configured transport.Syncer. Failures fire "error" and return *SyncError;
// successes fire "sync". Both run the Options callbacks.
package entity
