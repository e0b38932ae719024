// Package protocol implements the subset of the Redis Serialization Protocol (RESP2)
// needed to send command vectors and read replies.
//
// Replies are decoded straight into reply.Node values:
//
//	reader := protocol.NewReader(conn)
//	writer := protocol.NewWriter(conn)
//	writer.WriteCommand([][]byte{[]byte("GET"), []byte("key")})
//	writer.Flush()
//	node, err := reader.ReadNext()
//
// Null bulk strings and null arrays both decode to reply.Nil().
package protocol
