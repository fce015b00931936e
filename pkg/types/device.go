package types

// ConnectionType is the adb state of a device as reported by `adb devices`
type ConnectionType string

const (
	ConnectionDevice       ConnectionType = "device"
	ConnectionUnauthorized ConnectionType = "unauthorized"
	ConnectionUnknown      ConnectionType = "unknown"
)

// ParseConnectionType maps the state column of `adb devices -l` to a ConnectionType
func ParseConnectionType(state string) ConnectionType {
	switch state {
	case "device":
		return ConnectionDevice
	case "unauthorized":
		return ConnectionUnauthorized
	default:
		return ConnectionUnknown
	}
}

// Device represents an Android device or emulator
type Device struct {
	Serial     string         `json:"serial"`
	Type       ConnectionType `json:"type"`
	Model      string         `json:"model"`
	Product    string         `json:"product"`
	LastActive int64          `json:"lastActive"`
	IsPinned   bool           `json:"isPinned"`
}

// Ready reports whether adb commands can be issued against the device
func (d Device) Ready() bool {
	return d.Type == ConnectionDevice
}

// App represents an installed application
type App struct {
	PackageName string `json:"packageName"`
}

// FileType is the storage kind of a preference file
type FileType string

const (
	FileTypeKeyValue  FileType = "KEY_VALUE"
	FileTypeDataStore FileType = "DATA_STORE"
)

// Dir returns the directory of the file type relative to the app data dir
func (t FileType) Dir() string {
	if t == FileTypeDataStore {
		return "files/datastore"
	}
	return "shared_prefs"
}

// PrefFile represents a preference file of an app
type PrefFile struct {
	Name string   `json:"name"`
	Type FileType `json:"type"`
}

// PrefEntry is the flattened form of a preference used by the MCP interface
type PrefEntry struct {
	Key     string   `json:"key"`
	Kind    string   `json:"kind"`
	Value   string   `json:"value,omitempty"`
	Entries []string `json:"entries,omitempty"`
	State   string   `json:"state"`
}

// EditRecord is a persisted record of one edit dispatched to a preference file
type EditRecord struct {
	ID        string `json:"id"`
	SessionID string `json:"sessionId"`
	Target    string `json:"target"`
	Operation string `json:"operation"`
	Matcher   string `json:"matcher,omitempty"`
	Content   string `json:"content,omitempty"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	CreatedAt int64  `json:"createdAt"`
}
