package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raniellyferreira/redistmpl/lua"
)

func newRunCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run <script.lua> [<args>...]",
		Short: "run a Lua script with the redis_* functions registered",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := flags.open(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			result, err := lua.NewEngine(e.session).EvalFile(cmd.Context(), args[0], args[1:]...)
			if err != nil {
				return err
			}
			if result != nil {
				fmt.Fprintln(cmd.OutOrStdout(), result)
			}
			return nil
		},
	}
}
