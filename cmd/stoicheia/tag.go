package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newTagCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tag <quilt> <source-tag> <new-tag>",
		Short: "Point new-tag at whatever commit source-tag currently points to",
		Args:  cobra.ExactArgs(3),
		RunE:  runTag,
	}
}

func runTag(cmd *cobra.Command, args []string) error {
	c, err := openCatalog()
	if err != nil {
		return fmt.Errorf("opening catalog: %w", err)
	}
	defer c.Close()

	quiltName, sourceTag, newTag := args[0], args[1], args[2]
	if err := c.Tag(cmd.Context(), quiltName, sourceTag, newTag); err != nil {
		return fmt.Errorf("tagging: %w", err)
	}
	fmt.Printf("%s now points where %s does\n", newTag, sourceTag)
	return nil
}
