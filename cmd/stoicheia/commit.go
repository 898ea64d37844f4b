package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fenilsonani/stoicheia/internal/httpapi"
	"github.com/spf13/cobra"
)

func newCommitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "commit <quilt>",
		Short: "Apply a patch (read as JSON from --file) to a tag",
		Args:  cobra.ExactArgs(1),
		RunE:  runCommit,
	}
	cmd.Flags().StringP("tag", "t", "latest", "tag to read from and advance")
	cmd.Flags().StringP("message", "m", "", "commit message")
	cmd.Flags().StringP("file", "f", "", "path to a JSON-encoded patch (httpapi.PatchWireForm shape); - for stdin")
	cmd.MarkFlagRequired("file")
	return cmd
}

func runCommit(cmd *cobra.Command, args []string) error {
	c, err := openCatalog()
	if err != nil {
		return fmt.Errorf("opening catalog: %w", err)
	}
	defer c.Close()

	quiltName := args[0]
	tag, _ := cmd.Flags().GetString("tag")
	message, _ := cmd.Flags().GetString("message")
	file, _ := cmd.Flags().GetString("file")

	raw, err := readPatchFile(file)
	if err != nil {
		return err
	}
	var wire httpapi.PatchWireForm
	if err := json.Unmarshal(raw, &wire); err != nil {
		return fmt.Errorf("decoding patch JSON: %w", err)
	}
	p, err := wire.ToPatch()
	if err != nil {
		return fmt.Errorf("building patch: %w", err)
	}

	commID, err := c.ApplyPatch(cmd.Context(), quiltName, tag, message, p)
	if err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	fmt.Printf("commit %d\n", commID)
	return nil
}

func readPatchFile(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
