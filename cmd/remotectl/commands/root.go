// root.go - remotectl's top-level cobra command.
// Copyright (C) 2026  SimpleX Chat authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/theAkito/simplex-chat/internal/remote/registry"
)

var (
	// dbPath is the Host's remote_profiles SQLite database, shared with
	// the chat store (Section 5).
	dbPath string

	// outputFormat controls the output format for every command: table
	// or json.
	outputFormat string

	reg *registry.Registry
)

var rootCmd = &cobra.Command{
	Use:   "remotectl",
	Short: "Operator CLI for the Remote Profile Session device registry",
	Long:  "remotectl inspects and administers the Host's remote-device registry directly against its SQLite database.",
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		r, err := registry.Open(dbPath)
		if err != nil {
			return fmt.Errorf("open registry: %w", err)
		}
		reg = r
		return nil
	},
	PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
		if reg != nil {
			return reg.Close()
		}
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "remote_profiles.db",
		"path to the remote_profiles SQLite database")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "table",
		"output format: table, json")

	rootCmd.AddCommand(deviceCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(versionCmd())
}

// Execute runs the root command and exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
