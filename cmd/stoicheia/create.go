package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newCreateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <quilt> <axis>[,<axis>...]",
		Short: "Register a new quilt with a fixed axis order",
		Args:  cobra.ExactArgs(2),
		RunE:  runCreate,
	}
	return cmd
}

func runCreate(cmd *cobra.Command, args []string) error {
	c, err := openCatalog()
	if err != nil {
		return fmt.Errorf("opening catalog: %w", err)
	}
	defer c.Close()

	name := args[0]
	axes := strings.Split(args[1], ",")

	q, err := c.CreateQuilt(cmd.Context(), name, axes)
	if err != nil {
		return fmt.Errorf("creating quilt: %w", err)
	}
	fmt.Printf("created quilt %q with axes %v\n", q.Name, q.AxisNames)
	return nil
}
