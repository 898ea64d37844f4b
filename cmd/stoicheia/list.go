package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every registered quilt",
		Args:  cobra.NoArgs,
		RunE:  runList,
	}
}

func runList(cmd *cobra.Command, args []string) error {
	c, err := openCatalog()
	if err != nil {
		return fmt.Errorf("opening catalog: %w", err)
	}
	defer c.Close()

	quilts, err := c.ListQuilts(cmd.Context())
	if err != nil {
		return fmt.Errorf("listing quilts: %w", err)
	}
	for _, q := range quilts {
		fmt.Printf("%s\t%v\n", q.Name, q.AxisNames)
	}
	return nil
}
