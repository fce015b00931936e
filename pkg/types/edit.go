package types

// FileRef addresses a preference file for remote callers: either DeviceID, Package and
// File of an app on a device, or Path of a local file
type FileRef struct {
	DeviceID string `json:"deviceId,omitempty"`
	Package  string `json:"package,omitempty"`
	File     string `json:"file,omitempty"`
	Path     string `json:"path,omitempty"`
}

// Edit actions of PrefEdit
const (
	ActionSet    = "set"
	ActionDelete = "delete"
	ActionAdd    = "add"
)

// PrefEdit is one requested modification. Kind is only read for add, as a tag name
// (boolean, int, long, float, string, set).
type PrefEdit struct {
	Action  string   `json:"action"`
	Key     string   `json:"key"`
	Kind    string   `json:"kind,omitempty"`
	Value   string   `json:"value,omitempty"`
	Entries []string `json:"entries,omitempty"`
}

// PrefSnapshot is the content of a preference file as last read
type PrefSnapshot struct {
	Target     string      `json:"target"`
	Type       FileType    `json:"type"`
	Entries    []PrefEntry `json:"entries"`
	Duplicates []string    `json:"duplicates,omitempty"`
	Skipped    []string    `json:"skipped,omitempty"`
}

// SaveSummary reports the outcome of a batch of edits
type SaveSummary struct {
	Applied int    `json:"applied"`
	Pending int    `json:"pending"`
	Patch   string `json:"patch,omitempty"`
}
