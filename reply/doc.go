// Package reply defines the tagged reply value returned by a Redis command and the
// marshaler that turns it into a host output tree.
//
// A Node is a closed variant over the six RESP2 reply kinds:
//   - Status
//   - Error
//   - Integer
//   - String (bulk)
//   - Nil
//   - Array
//
// Marshaling walks the node by structural recursion and writes into a Target, which
// is implemented by the host (a Lua table, a Go Tree, ...). Kind numbers follow the
// numbering exposed by the original C bindings so scripts relying on them keep working.
package reply
