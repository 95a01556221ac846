// Package harness runs conformance scenarios against the document store.
//
// A scenario is a YAML file that declares indexes, a list of store
// operations and a set of assertions over the final database and the
// change events it produced:
//
//	name: nested_set
//	description: "set replaces the subtree below its path"
//	indexes:
//	  - path: /users
//	    field: name
//	setup:
//	  - op: set
//	    path: /users/u1
//	    doc: '{"name":"Ann","age":30}'
//	flow:
//	  - op: update
//	    path: /users/u1
//	    doc: '{"age":31}'
//	  - op: get
//	    path: /users/u1
//	    expect:
//	      result: '{"age":31,"name":"Ann"}'
//	assertions:
//	  - type: document
//	    path: /users/u1/age
//	    expect: "31"
//	  - type: event_count
//	    topic: jsondb-updated
//	    count: 2
//
// Documents are written as JSON strings so member order survives YAML
// decoding.
//
// # Steps
//
// Supported operations are set, update, push, delete, get, exists and
// lookup. Every step records a TraceEvent holding its textual result, the
// error code it failed with, and the events it published. An expect clause
// compares either the result or the error code.
//
// # Assertion Types
//
//   - document: the document at path reads back exactly as expect
//   - absent: nothing is stored at path
//   - event_count: topic was published exactly count times
//   - event_order: the payloads of all events, in publication order
//
// # Deterministic Testing
//
// Each scenario runs in a fresh in-memory SQLite database with pushed keys
// drawn from testutil.SequenceGenerator, so traces can be compared against
// golden files with RunWithGolden.
package harness
