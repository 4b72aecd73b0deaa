package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "divasim",
	Short: "Run the DiVA firmware against a simulated board",
	Long: `divasim runs the DiVA control loop on the host. The board's interrupt
controller, timer, status LED, button and reboot register are simulated; the
USB CDC interface is either simulated (stdin/stdout) or a real serial device.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(scenarioCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
