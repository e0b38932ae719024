// Command redistmpl runs Redis command templates and Lua scripts against a server.
//
// Usage:
//
//	redistmpl exec "SET ? ?" "l.key,g.value" --local key=a --global value=b
//	redistmpl run script.lua [args...]
//	redistmpl version
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "redistmpl:", err)
		stop()
		os.Exit(1)
	}
}
