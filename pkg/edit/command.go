package edit

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"PrefEditor/pkg/types"
)

// Clock supplies the timestamp of backup file suffixes
type Clock interface {
	Timestamp() string
}

// SystemClock formats the current local time
type SystemClock struct{}

func (SystemClock) Timestamp() string {
	return time.Now().Format("20060102150405")
}

// ClockFunc adapts a function to Clock
type ClockFunc func() string

func (f ClockFunc) Timestamp() string { return f() }

// TargetKind selects how a preference file is addressed
type TargetKind int

const (
	TargetDevice TargetKind = iota + 1
	TargetDesktop
)

// Target addresses one preference file, either inside an app sandbox on a device
// or as a plain path on the local machine.
type Target struct {
	Kind     TargetKind     `json:"kind"`
	Serial   string         `json:"serial,omitempty"`
	Package  string         `json:"package,omitempty"`
	File     string         `json:"file,omitempty"`
	Path     string         `json:"path,omitempty"`
	FileType types.FileType `json:"fileType"`
}

// DeviceTarget addresses a file of an app on a device
func DeviceTarget(serial, pkg, file string, fileType types.FileType) Target {
	return Target{Kind: TargetDevice, Serial: serial, Package: pkg, File: file, FileType: fileType}
}

// DesktopTarget addresses a local file. The file type follows the extension.
func DesktopTarget(p string) Target {
	ft := types.FileTypeKeyValue
	if strings.HasSuffix(p, ".preferences_pb") || strings.HasSuffix(p, ".pb") {
		ft = types.FileTypeDataStore
	}
	return Target{Kind: TargetDesktop, Path: p, FileType: ft}
}

// Validate checks that the fields required by the target kind are present
func (t Target) Validate() error {
	switch t.Kind {
	case TargetDevice:
		if t.Serial == "" || t.Package == "" || t.File == "" {
			return errors.New("device target needs serial, package and file")
		}
		if strings.Contains(t.File, "/") {
			return fmt.Errorf("invalid file name %q", t.File)
		}
	case TargetDesktop:
		if t.Path == "" {
			return errors.New("desktop target needs a path")
		}
	default:
		return fmt.Errorf("unknown target kind %d", t.Kind)
	}
	return nil
}

// RemotePath returns the absolute path of a device file inside the app data dir
func (t Target) RemotePath() string {
	return path.Join("/data/data", t.Package, t.FileType.Dir(), t.File)
}

func (t Target) String() string {
	if t.Kind == TargetDesktop {
		return t.Path
	}
	return t.Serial + ":" + t.Package + "/" + t.FileType.Dir() + "/" + t.File
}

// CommandBuilder translates targets and edits into subprocess argv.
// The argument order of write commands is positional in the scripts.
type CommandBuilder struct {
	Shell         string
	DeviceScript  string
	DesktopScript string
	// Executable is the adb binary handed to the device script and used for reads
	Executable string
	Backup     bool
	Clock      Clock
}

// NewCommandBuilder returns a builder with the default shell and script names
func NewCommandBuilder(executable string, backup bool) *CommandBuilder {
	return &CommandBuilder{
		Shell:         "sh",
		DeviceScript:  "device.sh",
		DesktopScript: "desktop.sh",
		Executable:    executable,
		Backup:        backup,
		Clock:         SystemClock{},
	}
}

// WriteCommand builds the argv applying e to t:
//
//	device:  sh device.sh <exec> <serial> <pkg> <file> <op> <i|i.backup-ts> <matcher> [content]
//	desktop: sh desktop.sh <op> <matcher> [content] <path>
func (b *CommandBuilder) WriteCommand(t Target, e Edit) ([]string, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if t.FileType == types.FileTypeDataStore {
		return nil, fmt.Errorf("%w: %s files cannot be patched as text", ErrUnsupportedOperation, t.FileType)
	}

	switch t.Kind {
	case TargetDevice:
		argv := []string{b.Shell, b.DeviceScript, b.Executable, t.Serial, t.Package, t.File,
			string(e.Op), b.inPlaceSuffix(), Escape(e.Matcher)}
		if e.Op.HasContent() {
			argv = append(argv, Escape(e.Content))
		}
		return argv, nil
	default:
		argv := []string{b.Shell, b.DesktopScript, string(e.Op), Escape(e.Matcher)}
		if e.Op.HasContent() {
			argv = append(argv, Escape(e.Content))
		}
		return append(argv, t.Path), nil
	}
}

// ReadCommand builds the argv printing the raw content of t on stdout
func (b *CommandBuilder) ReadCommand(t Target) ([]string, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if t.Kind == TargetDesktop {
		return []string{"cat", t.Path}, nil
	}
	return []string{b.Executable, "-s", t.Serial, "exec-out", "run-as", t.Package, "cat", t.RemotePath()}, nil
}

func (b *CommandBuilder) inPlaceSuffix() string {
	if !b.Backup {
		return "i"
	}
	clock := b.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	return "i.backup-" + clock.Timestamp()
}
