// Package redistmpl executes Redis commands written as small templates whose
// placeholders are filled from named variables.
//
// A template such as "SET ? ?" is paired with a comma-separated list of
// variable references like "l.key,g.value". The "l." prefix looks the name up
// in the caller's local scope and "g." in the global scope. Each resolved
// value becomes exactly one argument of the command, so values containing
// spaces or newlines are sent intact.
//
// Basic usage:
//
//	s, err := redistmpl.New()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer s.Free()
//
//	if err := s.Connect(ctx, "127.0.0.1", 6379); err != nil {
//		log.Fatal(err)
//	}
//
//	r := scope.NewResolver(scope.Map{"key": "a"}, scope.Map{"value": "b"})
//	node, err := s.Command(ctx, "SET ? ?", "l.key,g.value", r)
//
// Commands can also be pipelined with Append and drained with GetReply.
// Every failure is recorded on the session and can be read back with
// LastError until ClearError is called.
//
// The lua package exposes the same operations to Lua scripts.
package redistmpl
