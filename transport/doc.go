// Package transport adapts Redis client libraries to the small connection
// contract used by sessions: execute a command vector, append one to the
// pipeline, and receive the next pipelined reply.
//
// Three implementations are provided. Radix is the default and preserves all
// six reply kinds. GoRedis runs on a single-connection go-redis client and
// cannot distinguish status replies from bulk strings. RESP speaks the wire
// protocol directly over a net.Conn.
package transport
