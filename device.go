package main

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"PrefEditor/pkg/types"
)

// deviceIDPattern validates a device serial:
// - USB serials such as "1234567890ABCDEF" or "emulator-5554"
// - wireless devices as IP:port, e.g. "192.168.1.100:5555"
// - mDNS devices such as "adb-xxxxx._adb-tls-connect._tcp."
var deviceIDPattern = regexp.MustCompile(`^[a-zA-Z0-9._:\-]+$`)

// ValidateDeviceID rejects serials that could be interpreted by a shell
func ValidateDeviceID(deviceId string) error {
	if deviceId == "" {
		return fmt.Errorf("device ID cannot be empty")
	}
	if len(deviceId) > 256 {
		return fmt.Errorf("device ID too long (max 256 characters)")
	}
	if !deviceIDPattern.MatchString(deviceId) {
		return fmt.Errorf("invalid device ID format: contains illegal characters")
	}
	dangerousPatterns := []string{";", "&&", "||", "|", "`", "$", "(", ")", "{", "}", "<", ">", "!", "'", "\"", "\\"}
	for _, p := range dangerousPatterns {
		if strings.Contains(deviceId, p) {
			return fmt.Errorf("invalid device ID format: contains dangerous character '%s'", p)
		}
	}
	return nil
}

// parseDevices parses the output of `adb devices -l`
func parseDevices(output string) []types.Device {
	var devices []types.Device
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of devices attached") || strings.HasPrefix(line, "*") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}
		d := types.Device{
			Serial: parts[0],
			Type:   types.ParseConnectionType(parts[1]),
		}
		for _, p := range parts[2:] {
			kv := strings.SplitN(p, ":", 2)
			if len(kv) != 2 {
				continue
			}
			switch kv[0] {
			case "model":
				d.Model = strings.ReplaceAll(kv[1], "_", " ")
			case "product":
				d.Product = kv[1]
			}
		}
		devices = append(devices, d)
	}
	return devices
}

// GetDevices returns the connected devices, pinned device first, then most recently used
func (a *App) GetDevices(ctx context.Context) ([]types.Device, error) {
	if a.adbPath == "" {
		return nil, fmt.Errorf("ADB path is not initialized")
	}

	res, err := a.adb(ctx, "devices", "-l")
	if err != nil {
		return nil, fmt.Errorf("failed to run adb devices (path: %s): %w", a.adbPath, err)
	}
	devices := parseDevices(res.Stdout)

	pinned := ""
	if a.cacheService != nil {
		pinned = a.cacheService.PinnedSerial()
		for i := range devices {
			devices[i].LastActive = a.cacheService.LastActive(devices[i].Serial)
			devices[i].IsPinned = devices[i].Serial == pinned
		}
	}
	sortDevices(devices)

	DeviceLog().Int("count", len(devices)).Msg("Listed devices")
	return devices, nil
}

func sortDevices(devices []types.Device) {
	sort.SliceStable(devices, func(i, j int) bool {
		if devices[i].IsPinned != devices[j].IsPinned {
			return devices[i].IsPinned
		}
		if devices[i].LastActive != devices[j].LastActive {
			return devices[i].LastActive > devices[j].LastActive
		}
		return devices[i].Serial < devices[j].Serial
	})
}

// TogglePinDevice pins/unpins a device by its serial
func (a *App) TogglePinDevice(serial string) error {
	if err := ValidateDeviceID(serial); err != nil {
		return err
	}
	if a.cacheService == nil {
		return nil
	}
	if a.cacheService.PinnedSerial() == serial {
		a.cacheService.SetPinnedSerial("")
	} else {
		a.cacheService.SetPinnedSerial(serial)
	}
	return a.cacheService.SaveSettings()
}
