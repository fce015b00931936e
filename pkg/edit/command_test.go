package edit

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"PrefEditor/pkg/types"
)

const (
	testSerial  = "1B241CAA5079LR"
	testPackage = "com.charlesmuchene.pref-editor"
	testFile    = "preferences.xml"
)

func newTestBuilder(backup bool) *CommandBuilder {
	b := NewCommandBuilder("exec", backup)
	b.Clock = ClockFunc(func() string { return "now" })
	return b
}

func TestWriteCommand_DeviceDelete(t *testing.T) {
	target := DeviceTarget(testSerial, testPackage, testFile, types.FileTypeKeyValue)
	argv, err := newTestBuilder(false).WriteCommand(target, NewDelete("matcher"))
	if err != nil {
		t.Fatalf("Failed to build command: %v", err)
	}
	expected := []string{"sh", "device.sh", "exec", testSerial, testPackage, testFile, "delete", "i", "matcher"}
	if !slices.Equal(argv, expected) {
		t.Errorf("Expected %q, got %q", expected, argv)
	}
}

func TestWriteCommand_DeviceDeleteWithBackup(t *testing.T) {
	target := DeviceTarget(testSerial, testPackage, testFile, types.FileTypeKeyValue)
	argv, err := newTestBuilder(true).WriteCommand(target, NewDelete("matcher"))
	if err != nil {
		t.Fatalf("Failed to build command: %v", err)
	}
	expected := []string{"sh", "device.sh", "exec", testSerial, testPackage, testFile, "delete", "i.backup-now", "matcher"}
	if !slices.Equal(argv, expected) {
		t.Errorf("Expected %q, got %q", expected, argv)
	}
}

func TestWriteCommand_DeviceChangeAndAdd(t *testing.T) {
	target := DeviceTarget(testSerial, testPackage, testFile, types.FileTypeKeyValue)
	b := newTestBuilder(false)

	argv, err := b.WriteCommand(target, NewChange(`<int name="a" value="1" />`, `<int name="a" value="2" />`))
	if err != nil {
		t.Fatalf("Failed to build change: %v", err)
	}
	expected := []string{"sh", "device.sh", "exec", testSerial, testPackage, testFile, "change", "i",
		`<int name=\"a\" value=\"1\" \/>`, `<int name=\"a\" value=\"2\" \/>`}
	if !slices.Equal(argv, expected) {
		t.Errorf("Expected %q, got %q", expected, argv)
	}

	argv, err = b.WriteCommand(target, NewAdd("content"))
	if err != nil {
		t.Fatalf("Failed to build add: %v", err)
	}
	expected = []string{"sh", "device.sh", "exec", testSerial, testPackage, testFile, "add", "i", `<\/map>`, "content"}
	if !slices.Equal(argv, expected) {
		t.Errorf("Expected %q, got %q", expected, argv)
	}
}

func TestWriteCommand_DesktopAdd(t *testing.T) {
	path := "/home/user/prefs/settings.xml"
	argv, err := newTestBuilder(false).WriteCommand(DesktopTarget(path), NewAdd("content"))
	if err != nil {
		t.Fatalf("Failed to build command: %v", err)
	}
	expected := []string{"sh", "desktop.sh", "add", "<\\/map>", "content", path}
	if !slices.Equal(argv, expected) {
		t.Errorf("Expected %q, got %q", expected, argv)
	}
}

func TestWriteCommand_DesktopDeleteHasNoContent(t *testing.T) {
	argv, err := newTestBuilder(true).WriteCommand(DesktopTarget("/tmp/p.xml"), NewDelete("m"))
	if err != nil {
		t.Fatalf("Failed to build command: %v", err)
	}
	expected := []string{"sh", "desktop.sh", "delete", "m", "/tmp/p.xml"}
	if !slices.Equal(argv, expected) {
		t.Errorf("Expected %q, got %q", expected, argv)
	}
}

func TestWriteCommand_Rejects(t *testing.T) {
	b := newTestBuilder(false)
	device := DeviceTarget(testSerial, testPackage, testFile, types.FileTypeKeyValue)

	if _, err := b.WriteCommand(device, Edit{Op: "replace", Matcher: "m", Content: "c"}); !errors.Is(err, ErrUnsupportedOperation) {
		t.Errorf("Expected ErrUnsupportedOperation for replace, got %v", err)
	}
	if _, err := b.WriteCommand(device, Edit{Op: OpChange, Matcher: "m"}); !errors.Is(err, ErrInvariant) {
		t.Errorf("Expected ErrInvariant for change without content, got %v", err)
	}
	datastore := DeviceTarget(testSerial, testPackage, "settings.preferences_pb", types.FileTypeDataStore)
	if _, err := b.WriteCommand(datastore, NewDelete("m")); !errors.Is(err, ErrUnsupportedOperation) {
		t.Errorf("Expected ErrUnsupportedOperation for DataStore, got %v", err)
	}
	if _, err := b.WriteCommand(Target{Kind: TargetDevice, Serial: testSerial}, NewDelete("m")); err == nil {
		t.Error("Expected error for incomplete target")
	}
}

func TestReadCommand(t *testing.T) {
	b := NewCommandBuilder("adb", false)

	argv, err := b.ReadCommand(DeviceTarget(testSerial, testPackage, testFile, types.FileTypeKeyValue))
	if err != nil {
		t.Fatalf("Failed to build read: %v", err)
	}
	expected := []string{"adb", "-s", testSerial, "exec-out", "run-as", testPackage, "cat",
		"/data/data/" + testPackage + "/shared_prefs/" + testFile}
	if !slices.Equal(argv, expected) {
		t.Errorf("Expected %q, got %q", expected, argv)
	}

	argv, err = b.ReadCommand(DeviceTarget(testSerial, testPackage, "user.preferences_pb", types.FileTypeDataStore))
	if err != nil {
		t.Fatalf("Failed to build read: %v", err)
	}
	if last := argv[len(argv)-1]; last != "/data/data/"+testPackage+"/files/datastore/user.preferences_pb" {
		t.Errorf("Unexpected DataStore path %s", last)
	}

	argv, err = b.ReadCommand(DesktopTarget("/tmp/p.xml"))
	if err != nil {
		t.Fatalf("Failed to build read: %v", err)
	}
	if !slices.Equal(argv, []string{"cat", "/tmp/p.xml"}) {
		t.Errorf("Unexpected desktop read %q", argv)
	}
}

func TestDesktopTargetFileType(t *testing.T) {
	if DesktopTarget("/a/b.xml").FileType != types.FileTypeKeyValue {
		t.Error("Expected KEY_VALUE for xml")
	}
	if DesktopTarget("/a/b.preferences_pb").FileType != types.FileTypeDataStore {
		t.Error("Expected DATA_STORE for preferences_pb")
	}
}

func TestSystemClockFormat(t *testing.T) {
	ts := SystemClock{}.Timestamp()
	if len(ts) != len("20060102150405") || strings.ContainsAny(ts, " :-") {
		t.Errorf("Unexpected timestamp %q", ts)
	}
}
