package main

import (
	"fmt"
	"net/http"

	"github.com/fenilsonani/stoicheia/internal/httpapi"
	"github.com/spf13/cobra"
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the catalog over the HTTP façade",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	cmd.Flags().StringP("addr", "a", ":7878", "address to listen on")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	c, err := openCatalog()
	if err != nil {
		return fmt.Errorf("opening catalog: %w", err)
	}
	defer c.Close()

	addr, _ := cmd.Flags().GetString("addr")
	fmt.Printf("listening on %s\n", addr)
	return http.ListenAndServe(addr, httpapi.NewHandler(c))
}
