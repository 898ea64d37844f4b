package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fenilsonani/stoicheia/internal/httpapi"
	"github.com/spf13/cobra"
)

func newFetchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch <quilt>",
		Short: "Fetch a slice of a quilt as observed at a tag, printed as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runFetch,
	}
	cmd.Flags().StringP("tag", "t", "latest", "tag to fetch from")
	return cmd
}

func runFetch(cmd *cobra.Command, args []string) error {
	c, err := openCatalog()
	if err != nil {
		return fmt.Errorf("opening catalog: %w", err)
	}
	defer c.Close()

	quiltName := args[0]
	tag, _ := cmd.Flags().GetString("tag")

	p, err := c.Fetch(cmd.Context(), quiltName, tag, nil)
	if err != nil {
		return fmt.Errorf("fetching: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(httpapi.ToWireForm(p))
}
