package edit

import "strings"

// Escape prepares a free-text argument for the edit scripts: every "/" becomes "\/",
// then every `"` becomes `\"`. Nothing else is escaped.
func Escape(s string) string {
	s = strings.ReplaceAll(s, `/`, `\/`)
	return strings.ReplaceAll(s, `"`, `\"`)
}
