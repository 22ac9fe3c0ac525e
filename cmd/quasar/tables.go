package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/quasar/pkg/core"
)

func newTablesCommand(a *app) *cobra.Command {
	var datasource string
	cmd := &cobra.Command{
		Use:   "tables",
		Short: "List the tables of a datasource",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ds, err := a.open(ctx, datasource)
			if err != nil {
				return err
			}
			defer core.DisposeAll(ctx, ds)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-30s %-20s %10s %10s\n", "TABLE", "ENTITY TYPE", "VARIABLES", "ENTITIES")
			for _, t := range ds.ValueTables() {
				count, err := t.VariableEntityCount(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%-30s %-20s %10d %10d\n", t.Name(), t.EntityType(), len(t.Variables()), count)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&datasource, "datasource", "d", "", "Datasource name (required)")
	_ = cmd.MarkFlagRequired("datasource")
	return cmd
}
