// Package harness replays entity-set scenarios and checks the events they
// produce.
//
// A scenario builds one entityset.Set, runs a list of steps against it and
// records every event the set emits. Assertions then run over that trace and
// over the final membership, and the trace can be compared with a golden
// snapshot.
//
// # Scenario Format
//
// Scenarios are YAML or CUE files with the following structure:
//
//	name: merge_resorts
//	description: "A merge that changes the sort attribute re-sorts the set"
//	set:
//	  comparator: rank
//	  models:
//	    - {id: 1, rank: 1}
//	    - {id: 2, rank: 2}
//	steps:
//	  - op: set
//	    models:
//	      - {id: 1, rank: 5}
//	      - {id: 4, rank: 0}
//	assertions:
//	  - type: trace_order
//	    events: [remove, add, sort, update]
//	  - type: final_ids
//	    ids: [4, 1]
//
// A scenario may also list server resources. They are seeded into a REST
// endpoint at the set's URL, which fetch, create and destroy steps talk to.
//
// # Step Operations
//
//   - set, add, reset: reconcile with models (and bare ids)
//   - remove: remove the members with the given ids
//   - push, unshift: insert one model at the end or the front
//   - pop, shift: remove the last or first member
//   - sort: re-sort with the comparator
//   - model_set, model_unset: change one member's attributes
//   - destroy: destroy one member through the REST endpoint
//   - fetch: fetch the set from the REST endpoint
//   - create: create one model through the REST endpoint
//
// # Assertion Types
//
//   - trace_contains: an event (optionally for an id and index) was emitted
//   - trace_order: events appear in this order, not necessarily adjacent
//   - trace_count: an event was emitted exactly N times
//   - trace_absent: an event was never emitted
//   - final_ids: the members' ids, in order
//   - length: the number of members
//   - final_state: a member's attributes include the expected values
//
// # Deterministic Testing
//
// Every run uses a fresh in-memory SQLite store and a fresh logical clock.
// Client ids are reported by order of first appearance in the trace (c1,
// c2, ...) and server-assigned ids are s1, s2, ..., so identical scenarios
// produce byte-identical snapshots.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/merge_resorts.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
