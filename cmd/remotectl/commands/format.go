// format.go - table/json rendering for remote-device rows.
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
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/theAkito/simplex-chat/internal/remote/registry"
)

const (
	formatJSON  = "json"
	formatTable = "table"
)

var errUnsupportedFormat = errors.New("unsupported output format")

type deviceView struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	Status          string `json:"status"`
	DevicePublicKey string `json:"device_public_key"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

func toDeviceView(d *registry.RemoteDevice) deviceView {
	return deviceView{
		ID:              d.ID,
		Name:            d.DeviceName,
		Status:          string(d.DeviceStatus),
		DevicePublicKey: base64.StdEncoding.EncodeToString(d.DevicePublicKey),
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

func formatDevices(devices []*registry.RemoteDevice, format string) (string, error) {
	switch format {
	case formatJSON:
		views := make([]deviceView, 0, len(devices))
		for _, d := range devices {
			views = append(views, toDeviceView(d))
		}
		data, err := json.MarshalIndent(views, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal devices to JSON: %w", err)
		}
		return string(data), nil
	case formatTable:
		var buf strings.Builder
		w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSTATUS\tDEVICE-PUBLIC-KEY\tCREATED")
		for _, d := range devices {
			v := toDeviceView(d)
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", v.ID, v.Name, v.Status, v.DevicePublicKey, v.CreatedAt)
		}
		if err := w.Flush(); err != nil {
			return "", fmt.Errorf("flush tabwriter: %w", err)
		}
		return buf.String(), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

func formatDevice(d *registry.RemoteDevice, format string) (string, error) {
	switch format {
	case formatJSON:
		data, err := json.MarshalIndent(toDeviceView(d), "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal device to JSON: %w", err)
		}
		return string(data), nil
	case formatTable:
		var buf strings.Builder
		w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
		v := toDeviceView(d)
		fmt.Fprintf(w, "ID:\t%d\n", v.ID)
		fmt.Fprintf(w, "Name:\t%s\n", v.Name)
		fmt.Fprintf(w, "Status:\t%s\n", v.Status)
		fmt.Fprintf(w, "Device Public Key:\t%s\n", v.DevicePublicKey)
		fmt.Fprintf(w, "Created At:\t%s\n", v.CreatedAt)
		fmt.Fprintf(w, "Updated At:\t%s\n", v.UpdatedAt)
		if err := w.Flush(); err != nil {
			return "", fmt.Errorf("flush tabwriter: %w", err)
		}
		return buf.String(), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}
