package edit

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Simulate applies edits to text the way the edit scripts do with sed:
// add and change substitute the first occurrence of the matcher on every line,
// delete drops every line containing the matcher. Matchers are compared literally.
func Simulate(text string, edits []Edit) (string, error) {
	for _, e := range edits {
		if err := e.Validate(); err != nil {
			return "", err
		}
		if !strings.Contains(text, e.Matcher) {
			return "", fmt.Errorf("%w: %s", ErrNoMatch, e.Matcher)
		}

		lines := strings.SplitAfter(text, "\n")
		var b strings.Builder
		b.Grow(len(text) + len(e.Content))
		for _, line := range lines {
			if !strings.Contains(line, e.Matcher) {
				b.WriteString(line)
				continue
			}
			switch e.Op {
			case OpAdd:
				b.WriteString(strings.Replace(line, e.Matcher, e.Content+"\n"+e.Matcher, 1))
			case OpChange:
				b.WriteString(strings.Replace(line, e.Matcher, e.Content, 1))
			case OpDelete:
			}
		}
		text = b.String()
	}
	return text, nil
}

// Diff renders a line-oriented diff between two texts. Unchanged lines are prefixed
// with two spaces, removed lines with "- " and inserted lines with "+ ".
func Diff(before, after string) string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var out strings.Builder
	for _, d := range diffs {
		prefix := "  "
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			out.WriteString(prefix)
			out.WriteString(line)
			if !strings.HasSuffix(line, "\n") {
				out.WriteByte('\n')
			}
		}
	}
	return out.String()
}

// Patch returns the textual patch from before to after, suitable for storing
func Patch(before, after string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, false)
	return dmp.PatchToText(dmp.PatchMake(before, diffs))
}

// Preview simulates edits against text and returns the rendered diff
func Preview(text string, edits []Edit) (string, error) {
	after, err := Simulate(text, edits)
	if err != nil {
		return "", err
	}
	return Diff(text, after), nil
}
