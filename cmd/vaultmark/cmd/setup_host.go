package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var setupHostCmd = &cobra.Command{
	Use:   "setup-host <host>",
	Short: "Print the commands that make a host trust the CA",
	Long: `Print the shell commands that configure a host's sshd to accept
certificates signed by this CA. Run them on the target host.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, closeEngine, err := openEngine()
		if err != nil {
			return err
		}
		defer closeEngine()

		steps, err := e.HostSetupPlan(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Run on %s:\n\n", args[0])
		for i, step := range steps {
			fmt.Printf("# %d. %s\n%s\n\n", i+1, step.Description, step.Command)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(setupHostCmd)
}
