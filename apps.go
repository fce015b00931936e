package main

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var packageNamePattern = regexp.MustCompile(`^[A-Za-z0-9_.\-]+$`)

// ValidatePackageName rejects package names that are not plain Java identifiers joined by dots
func ValidatePackageName(name string) error {
	if name == "" {
		return fmt.Errorf("package name cannot be empty")
	}
	if len(name) > 256 || !packageNamePattern.MatchString(name) {
		return fmt.Errorf("invalid package name %q", name)
	}
	return nil
}

// parsePackages extracts names from `pm list packages` output, sorted
func parsePackages(output string) []string {
	var packages []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "package:") {
			packages = append(packages, strings.TrimPrefix(line, "package:"))
		}
	}
	sort.Strings(packages)
	return packages
}

// ListPackages returns the third-party packages installed on a device.
// The list is served from cache unless refresh is set or the entry expired.
func (a *App) ListPackages(ctx context.Context, deviceId string, refresh bool) ([]string, error) {
	if err := ValidateDeviceID(deviceId); err != nil {
		return nil, err
	}
	a.updateLastActive(deviceId)

	if a.cacheService != nil && refresh {
		a.cacheService.InvalidateApps(deviceId)
	}
	if a.cacheService != nil && !refresh {
		if cached, ok := a.cacheService.Apps(deviceId); ok {
			return cached, nil
		}
	}

	res, err := a.adb(ctx, "-s", deviceId, "shell", "pm", "list", "packages", "-3")
	if err != nil {
		return nil, fmt.Errorf("failed to list user packages: %w", err)
	}
	packages := parsePackages(res.Stdout)

	if a.cacheService != nil {
		a.cacheService.SetApps(deviceId, packages)
		if err := a.cacheService.SaveCache(); err != nil {
			LogWarn("cache").Err(err).Msg("Failed to save app cache")
		}
	}
	DeviceLog().Str("device", deviceId).Int("count", len(packages)).Msg("Listed packages")
	return packages, nil
}
