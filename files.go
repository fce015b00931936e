package main

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"PrefEditor/pkg/process"
	"PrefEditor/pkg/types"
)

// fileTypeOf infers the storage kind from a file name
func fileTypeOf(name string) types.FileType {
	if strings.HasSuffix(name, ".preferences_pb") || strings.HasSuffix(name, ".pb") {
		return types.FileTypeDataStore
	}
	return types.FileTypeKeyValue
}

// parseFileList keeps the names of ls output with the extension of the file type
func parseFileList(output string, ft types.FileType) []types.PrefFile {
	ext := ".xml"
	if ft == types.FileTypeDataStore {
		ext = ".preferences_pb"
	}
	var files []types.PrefFile
	for _, line := range strings.Split(output, "\n") {
		name := path.Base(strings.TrimSpace(line))
		if !strings.HasSuffix(name, ext) || strings.ContainsAny(name, " \t") {
			continue
		}
		files = append(files, types.PrefFile{Name: name, Type: ft})
	}
	return files
}

// ListPrefFiles lists the SharedPreferences and DataStore files of an app.
// A missing directory is not an error: the app simply has no files of that type.
func (a *App) ListPrefFiles(ctx context.Context, deviceId, pkg string) ([]types.PrefFile, error) {
	if err := ValidateDeviceID(deviceId); err != nil {
		return nil, err
	}
	if err := ValidatePackageName(pkg); err != nil {
		return nil, err
	}
	a.updateLastActive(deviceId)

	var files []types.PrefFile
	for _, ft := range []types.FileType{types.FileTypeKeyValue, types.FileTypeDataStore} {
		res, err := a.adb(ctx, "-s", deviceId, "exec-out", "run-as", pkg, "ls", ft.Dir())
		if err != nil {
			var exitErr *process.ExitError
			if errors.As(err, &exitErr) {
				LogDebug("files").Str("package", pkg).Str("dir", ft.Dir()).Int("code", exitErr.Code).Msg("Directory not listable")
				continue
			}
			return nil, fmt.Errorf("failed to list %s: %w", ft.Dir(), err)
		}
		// run-as and ls report missing dirs or non-debuggable apps on stdout with exit 1
		if res.ExitCode != 0 {
			continue
		}
		files = append(files, parseFileList(res.Stdout, ft)...)
	}
	return files, nil
}
