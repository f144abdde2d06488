package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "fabric-agent",
	Short: "Runs one agent on the messaging fabric",
	Long: `fabric-agent wires a broker transport, a typed dispatcher host,
a tool invocation router, and the A2A task protocol into a single
process, configured from a YAML file (see config.Config).`,
}
