package main

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"PrefEditor/pkg/cache"
	"PrefEditor/pkg/process"
	"PrefEditor/pkg/types"
)

// scriptedRunner answers commands by their joined argv and records every call
type scriptedRunner struct {
	mu        sync.Mutex
	responses map[string]process.Result
	errs      map[string]error
	calls     []string
}

func (r *scriptedRunner) Run(ctx context.Context, argv []string) (process.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := strings.Join(argv, " ")
	r.calls = append(r.calls, key)
	if err, ok := r.errs[key]; ok {
		return r.responses[key], err
	}
	if res, ok := r.responses[key]; ok {
		return res, nil
	}
	return process.Result{}, &process.ExitError{Argv: argv, Code: 127, Stderr: "unexpected command"}
}

func newTestApp(t *testing.T, runner process.Runner) *App {
	t.Helper()
	cs, err := cache.New(cache.Config{Dir: t.TempDir(), TTL: appCacheTTL})
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	return &App{
		ctx:          context.Background(),
		adbPath:      "adb",
		runner:       runner,
		cacheService: cs,
		sessions:     make(map[string]*EditSession),
	}
}

func TestValidateDeviceID(t *testing.T) {
	valid := []string{"emulator-5554", "1234567890ABCDEF", "192.168.1.100:5555", "adb-R5CT-x._adb-tls-connect._tcp."}
	for _, id := range valid {
		if err := ValidateDeviceID(id); err != nil {
			t.Errorf("ValidateDeviceID(%q) = %v", id, err)
		}
	}
	invalid := []string{"", "emu;reboot", "a b", "$(id)", "x|y", strings.Repeat("a", 257)}
	for _, id := range invalid {
		if err := ValidateDeviceID(id); err == nil {
			t.Errorf("ValidateDeviceID(%q) should fail", id)
		}
	}
}

func TestParseDevices(t *testing.T) {
	output := `* daemon started successfully
List of devices attached
emulator-5554          device product:sdk_gphone64 model:sdk_gphone64_arm64 device:emu64a transport_id:1
R5CT1234               unauthorized usb:1-1 transport_id:2
192.168.1.5:5555       offline transport_id:3

`
	devices := parseDevices(output)
	if len(devices) != 3 {
		t.Fatalf("Expected 3 devices, got %d", len(devices))
	}
	if devices[0].Serial != "emulator-5554" || devices[0].Type != types.ConnectionDevice || devices[0].Model != "sdk gphone64 arm64" || devices[0].Product != "sdk_gphone64" {
		t.Errorf("Unexpected first device %+v", devices[0])
	}
	if devices[1].Type != types.ConnectionUnauthorized || devices[1].Ready() {
		t.Errorf("Unexpected second device %+v", devices[1])
	}
	if devices[2].Type != types.ConnectionUnknown {
		t.Errorf("Offline should map to unknown, got %s", devices[2].Type)
	}
}

func TestGetDevicesOrdering(t *testing.T) {
	runner := &scriptedRunner{responses: map[string]process.Result{
		"adb devices -l": {Stdout: "List of devices attached\nalpha device\nbeta device\ngamma device\n"},
	}}
	app := newTestApp(t, runner)
	app.cacheService.Touch("alpha")
	if err := app.TogglePinDevice("gamma"); err != nil {
		t.Fatalf("TogglePinDevice failed: %v", err)
	}

	devices, err := app.GetDevices(context.Background())
	if err != nil {
		t.Fatalf("GetDevices failed: %v", err)
	}
	var order []string
	for _, d := range devices {
		order = append(order, d.Serial)
	}
	if strings.Join(order, ",") != "gamma,alpha,beta" {
		t.Errorf("Expected pinned then recent order, got %v", order)
	}
	if !devices[0].IsPinned || devices[1].LastActive == 0 {
		t.Errorf("Unexpected device metadata %+v", devices)
	}

	app.TogglePinDevice("gamma")
	if app.cacheService.PinnedSerial() != "" {
		t.Error("Second toggle should unpin")
	}
}

func TestGetDevicesError(t *testing.T) {
	runner := &scriptedRunner{errs: map[string]error{"adb devices -l": process.ErrTimeout}}
	app := newTestApp(t, runner)
	if _, err := app.GetDevices(context.Background()); !errors.Is(err, process.ErrTimeout) {
		t.Errorf("Expected ErrTimeout, got %v", err)
	}
}

func TestListPackagesUsesCache(t *testing.T) {
	cmd := "adb -s emulator-5554 shell pm list packages -3"
	runner := &scriptedRunner{responses: map[string]process.Result{
		cmd: {Stdout: "package:com.zeta\npackage:com.alpha\n\n"},
	}}
	app := newTestApp(t, runner)

	pkgs, err := app.ListPackages(context.Background(), "emulator-5554", false)
	if err != nil {
		t.Fatalf("ListPackages failed: %v", err)
	}
	if strings.Join(pkgs, ",") != "com.alpha,com.zeta" {
		t.Errorf("Unexpected packages %v", pkgs)
	}
	app.ListPackages(context.Background(), "emulator-5554", false)
	app.ListPackages(context.Background(), "emulator-5554", true)

	count := 0
	for _, c := range runner.calls {
		if c == cmd {
			count++
		}
	}
	if count != 2 {
		t.Errorf("Expected the cached call to skip adb, got %d calls", count)
	}

	if _, err := app.ListPackages(context.Background(), "bad;id", false); err == nil {
		t.Error("Expected invalid device ID error")
	}
}

func TestValidatePackageName(t *testing.T) {
	for _, name := range []string{"com.example.app", "org.my_app-debug"} {
		if err := ValidatePackageName(name); err != nil {
			t.Errorf("ValidatePackageName(%q) = %v", name, err)
		}
	}
	for _, name := range []string{"", "com.app;rm", "com app", "com/app"} {
		if err := ValidatePackageName(name); err == nil {
			t.Errorf("ValidatePackageName(%q) should fail", name)
		}
	}
}

func TestListPrefFiles(t *testing.T) {
	prefix := "adb -s emulator-5554 exec-out run-as com.example.app ls "
	runner := &scriptedRunner{
		responses: map[string]process.Result{
			prefix + "shared_prefs":    {Stdout: "settings.xml\nWebViewChromiumPrefs.xml\nnotes.txt\n"},
			prefix + "files/datastore": {Stdout: "ls: files/datastore: No such file or directory\n", ExitCode: 1},
		},
	}
	app := newTestApp(t, runner)

	files, err := app.ListPrefFiles(context.Background(), "emulator-5554", "com.example.app")
	if err != nil {
		t.Fatalf("ListPrefFiles failed: %v", err)
	}
	if len(files) != 2 || files[0].Name != "settings.xml" || files[0].Type != types.FileTypeKeyValue {
		t.Errorf("Unexpected files %+v", files)
	}

	runner.responses[prefix+"files/datastore"] = process.Result{Stdout: "user.preferences_pb\n"}
	files, _ = app.ListPrefFiles(context.Background(), "emulator-5554", "com.example.app")
	if len(files) != 3 || files[2].Type != types.FileTypeDataStore {
		t.Errorf("Expected DataStore file, got %+v", files)
	}
}

func TestDeviceTargetInfersFileType(t *testing.T) {
	app := newTestApp(t, &scriptedRunner{})
	target, err := app.DeviceTarget("emulator-5554", "com.example.app", "user.preferences_pb")
	if err != nil {
		t.Fatalf("DeviceTarget failed: %v", err)
	}
	if target.FileType != types.FileTypeDataStore || target.RemotePath() != "/data/data/com.example.app/files/datastore/user.preferences_pb" {
		t.Errorf("Unexpected target %+v", target)
	}
	if _, err := app.DeviceTarget("emulator-5554", "com.example.app", "../x.xml"); err == nil {
		t.Error("Expected path traversal to be rejected")
	}
}
