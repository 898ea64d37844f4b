package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newUntagCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "untag <quilt> <tag>",
		Short: "Remove a tag pointer (no garbage collection follows)",
		Args:  cobra.ExactArgs(2),
		RunE:  runUntag,
	}
}

func runUntag(cmd *cobra.Command, args []string) error {
	c, err := openCatalog()
	if err != nil {
		return fmt.Errorf("opening catalog: %w", err)
	}
	defer c.Close()

	quiltName, tagName := args[0], args[1]
	if err := c.Untag(cmd.Context(), quiltName, tagName); err != nil {
		return fmt.Errorf("untagging: %w", err)
	}
	fmt.Printf("removed tag %q from %q\n", tagName, quiltName)
	return nil
}
