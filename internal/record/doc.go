// Package record defines the data model shared by the flattener, the
// assembler and the store engine.
//
// A JSON document is stored as one Record per scalar value, keyed by a
// flattened storage path:
//
//	{"users": {"u1": {"name": "Joe", "tags": ["a", "b"]}}}
//
// becomes
//
//	/users/u1/name/       String  "Joe"
//	/users/u1/tags/[0/    String  "a"
//	/users/u1/tags/[1/    String  "b"
//
// Objects and arrays have no row of their own. An explicitly empty
// container is kept as a single placeholder row of kind Object or Array at
// the container path so it survives a round trip.
//
// # Ordering
//
// Array positions are encoded with a self-delimiting, lexicographically
// sortable token (see package path). Sorting records by path with a
// byte-exact collation therefore yields document order, which is what lets
// the assembler rebuild JSON in a single forward pass.
package record
