package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Expire overdue credentials and destroy their key material",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, closeEngine, err := openEngine()
		if err != nil {
			return err
		}
		defer closeEngine()

		count, err := e.Sweep(cmd.Context(), time.Now())
		if err != nil {
			return err
		}
		fmt.Printf("Expired %d credential(s).\n", count)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
}
