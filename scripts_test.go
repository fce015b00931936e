package main

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"PrefEditor/pkg/edit"
	"PrefEditor/pkg/process"
)

// fakeADB prints every argument on its own line
const fakeADB = "#!/bin/sh\nprintf '%s\\n' \"$@\"\n"

func setupScripts(t *testing.T) (string, string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("edit scripts need a POSIX shell")
	}
	for _, bin := range []string{"sh", "sed", "printf"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not available", bin)
		}
	}
	dir := t.TempDir()
	scriptsDir := filepath.Join(dir, "scripts")
	if err := installScripts(scriptsDir); err != nil {
		t.Fatalf("installScripts failed: %v", err)
	}
	adb := filepath.Join(dir, "adb")
	if err := os.WriteFile(adb, []byte(fakeADB), 0755); err != nil {
		t.Fatal(err)
	}
	return scriptsDir, adb
}

func TestDeviceScriptRemoteCommand(t *testing.T) {
	scriptsDir, adb := setupScripts(t)
	target := edit.DeviceTarget("emulator-5554", "com.example.app", "settings.xml", "")

	tests := []struct {
		name   string
		backup bool
		edit   edit.Edit
		remote string
	}{
		{
			name: "change",
			edit: edit.NewChange(`<string name="url">https://example.org/v1</string>`, `<string name="url">https://example.org/v2</string>`),
			remote: `run-as com.example.app sed -i "s/<string name=\"url\">https:\/\/example\.org\/v1<\/string>/` +
				`<string name=\"url\">https:\/\/example.org\/v2<\/string>/" shared_prefs/settings.xml`,
		},
		{
			name:   "add with backup",
			backup: true,
			edit:   edit.NewAdd(`<int name="build" value="42" />`),
			remote: `run-as com.example.app sed -i.backup-20260101-120000 "s/<\/map>/<int name=\"build\" value=\"42\" \/>\n<\/map>/" shared_prefs/settings.xml`,
		},
		{
			name:   "delete",
			edit:   edit.NewDelete(`<float name="ratio" value="1.5" />`),
			remote: `run-as com.example.app sed -i "/<float name=\"ratio\" value=\"1\.5\" \/>/d" shared_prefs/settings.xml`,
		},
		{
			name: "regex characters",
			edit: edit.NewChange(`<string name="q">a*[b]^&c</string>`, `<string name="q">x&y</string>`),
			remote: `run-as com.example.app sed -i "s/<string name=\"q\">a\*\[b\]\^&c<\/string>/` +
				`<string name=\"q\">x\&y<\/string>/" shared_prefs/settings.xml`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := edit.NewCommandBuilder(adb, tt.backup)
			b.Clock = edit.ClockFunc(func() string { return "20260101-120000" })
			argv, err := b.WriteCommand(target, tt.edit)
			if err != nil {
				t.Fatalf("WriteCommand failed: %v", err)
			}
			res, err := process.New(scriptsDir).Run(context.Background(), argv)
			if err != nil {
				t.Fatalf("device.sh failed: %v", err)
			}
			got := strings.Split(strings.TrimSuffix(res.Stdout, "\n"), "\n")
			if len(got) != 4 || got[0] != "-s" || got[1] != "emulator-5554" || got[2] != "shell" {
				t.Fatalf("Unexpected adb arguments %q (stderr %q)", got, res.Stderr)
			}
			if got[3] != tt.remote {
				t.Errorf("Remote command mismatch\n got: %s\nwant: %s", got[3], tt.remote)
			}
		})
	}
}

func TestDeviceScriptRejectsMissingContent(t *testing.T) {
	scriptsDir, adb := setupScripts(t)
	argv := []string{"sh", "device.sh", adb, "emulator-5554", "com.example.app", "settings.xml", "change", "i", "a"}
	res, err := process.New(scriptsDir).Run(context.Background(), argv)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.ExitCode != 1 || !strings.Contains(res.Stderr, "change needs content") {
		t.Errorf("Expected usage failure, got %+v", res)
	}
}

func TestDesktopScriptEscapesRegexCharacters(t *testing.T) {
	scriptsDir, _ := setupScripts(t)
	path := filepath.Join(t.TempDir(), "prefs.xml")
	before := "<map>\n    <string name=\"q\">a.b*[c]^d</string>\n    <string name=\"r\">aXb</string>\n</map>\n"
	if err := os.WriteFile(path, []byte(before), 0644); err != nil {
		t.Fatal(err)
	}

	argv, err := edit.NewCommandBuilder("adb", false).WriteCommand(edit.DesktopTarget(path),
		edit.NewChange(`<string name="q">a.b*[c]^d</string>`, `<string name="q">x&y</string>`))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := process.New(scriptsDir).Run(context.Background(), argv); err != nil {
		t.Fatalf("desktop.sh failed: %v", err)
	}

	data, _ := os.ReadFile(path)
	want := "<map>\n    <string name=\"q\">x&y</string>\n    <string name=\"r\">aXb</string>\n</map>\n"
	if string(data) != want {
		t.Errorf("Unexpected file content:\n%s", data)
	}
}
