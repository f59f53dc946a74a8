// device.go - "remotectl device" subcommands.
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
	"strconv"

	"github.com/spf13/cobra"
)

func deviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "device",
		Short: "Manage paired remote devices",
	}
	cmd.AddCommand(deviceListCmd())
	cmd.AddCommand(deviceShowCmd())
	cmd.AddCommand(deviceRevokeCmd())
	cmd.AddCommand(deviceDeleteCmd())
	return cmd
}

func deviceListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every registered remote device",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			devices, err := reg.List()
			if err != nil {
				return fmt.Errorf("list devices: %w", err)
			}
			out, err := formatDevices(devices, outputFormat)
			if err != nil {
				return err
			}
			fmt.Print(out)
			return nil
		},
	}
}

func deviceShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show details of one remote device",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("parse device id %q: %w", args[0], err)
			}
			dev, err := reg.ByID(id)
			if err != nil {
				return fmt.Errorf("get device: %w", err)
			}
			out, err := formatDevice(dev, outputFormat)
			if err != nil {
				return err
			}
			fmt.Print(out)
			return nil
		},
	}
}

func deviceRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke a remote device, blocking future reconnects",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("parse device id %q: %w", args[0], err)
			}
			if err := reg.Revoke(id); err != nil {
				return fmt.Errorf("revoke device: %w", err)
			}
			fmt.Printf("Device %d revoked.\n", id)
			return nil
		},
	}
}

func deviceDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Permanently delete a remote device row and its user bindings",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("parse device id %q: %w", args[0], err)
			}
			if err := reg.Delete(id); err != nil {
				return fmt.Errorf("delete device: %w", err)
			}
			fmt.Printf("Device %d deleted.\n", id)
			return nil
		},
	}
}
