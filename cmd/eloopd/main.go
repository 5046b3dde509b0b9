// Command eloopd is the CLI front door for the event loop runtime:
// load a YAML config, build a Loop with a TCP Connection Manager and
// an interrupt Manager, and drive it until signaled to stop.
package main

import (
	"log"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "eloopd",
	Short: "A cooperative event loop runtime with a TCP Connection Manager.",
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
