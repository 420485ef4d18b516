package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "face-attendance",
	Short: "Face recognition attendance kiosk and ledger",
	Long: `Face Attendance recognizes enrolled people from camera frames and records
their time in and time out in an append-only attendance ledger.

The gallery of known people is a folder of images named "<name>, <position>.jpg".
Embeddings are computed by an external embedding server and optionally cached
in PostgreSQL. The ledger is a CSV file by default, or a PostgreSQL or MariaDB
table.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
