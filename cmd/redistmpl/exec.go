package main

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/raniellyferreira/redistmpl/reply"
	"github.com/raniellyferreira/redistmpl/scope"
)

func newExecCommand(flags *globalFlags) *cobra.Command {
	var locals, globals []string

	cmd := &cobra.Command{
		Use:   "exec <template> [<vars>]",
		Short: "compile a command template, run it and print the reply tree",
		Args:  cobra.RangeArgs(1, 2),
	}
	cmd.Flags().StringArrayVarP(&locals, "local", "l", nil, "local variable as key=value (repeatable)")
	cmd.Flags().StringArrayVarP(&globals, "global", "g", nil, "global variable as key=value (repeatable)")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		local, err := parseAssignments(locals)
		if err != nil {
			return errors.Wrap(err, "--local")
		}
		global, err := parseAssignments(globals)
		if err != nil {
			return errors.Wrap(err, "--global")
		}

		e, err := flags.open(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		vars := ""
		if len(args) == 2 {
			vars = args[1]
		}

		node, err := e.session.Command(cmd.Context(), args[0], vars, scope.NewResolver(local, global))
		if err == nil || node.IsError() {
			tree := &reply.Tree{}
			e.session.Marshal(node, tree)
			fmt.Fprintln(cmd.OutOrStdout(), tree.Format())
		}
		if err != nil {
			if e.session.Policy().ShouldAbort(err) {
				return err
			}
			state := e.session.LastError()
			fmt.Fprintf(cmd.ErrOrStderr(), "error %d (%s): %s\n", int(state.Code), state.Code, state.Message)
		}
		return nil
	}
	return cmd
}

// parseAssignments turns key=value pairs into a scope
func parseAssignments(pairs []string) (scope.Map, error) {
	m := make(scope.Map, len(pairs))
	for _, p := range pairs {
		i := strings.IndexByte(p, '=')
		if i <= 0 {
			return nil, errors.Errorf("expected key=value, got %q", p)
		}
		m[p[:i]] = p[i+1:]
	}
	return m, nil
}
