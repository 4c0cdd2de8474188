package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var flowsCmd = &cobra.Command{
	Use:   "flows",
	Short: "List the registered flows",
	RunE:  runFlows,
}

func runFlows(cmd *cobra.Command, _ []string) error {
	engine, err := buildEngine()
	if err != nil {
		return err
	}

	for _, spec := range engine.Registry().List() {
		fmt.Fprintf(cmd.OutOrStdout(), "%-12s %s\n", spec.ID, strings.Join(spec.Nodes, " -> "))
		if spec.Description != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "             %s\n", spec.Description)
		}
	}
	return nil
}
