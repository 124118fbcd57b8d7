package pipeline

import (
	"encoding/json"
	"regexp"
	"strings"
)

var bracketedCommandRe = regexp.MustCompile(`\[([^\[\]]*)\]`)

// ParseCommandList parses a catalog source_comments/processing_comments
// value into an ordered list of shell commands. Three syntaxes are tried
// in order: bracketed (`[cmd1] [cmd2]`), JSON array, then
// semicolon/newline-separated. A value that parses as a JSON array of
// strings is read as JSON, not as one bracketed command. An empty input
// yields an empty list, not an error.
func ParseCommandList(raw string) []string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}

	var asJSON []string
	jsonErr := json.Unmarshal([]byte(trimmed), &asJSON)

	if matches := bracketedCommandRe.FindAllStringSubmatch(trimmed, -1); jsonErr != nil && len(matches) > 0 {
		out := make([]string, 0, len(matches))
		for _, m := range matches {
			cmd := strings.TrimSpace(m[1])
			if cmd != "" {
				out = append(out, cmd)
			}
		}
		if len(out) > 0 {
			return out
		}
	}

	if jsonErr == nil {
		out := make([]string, 0, len(asJSON))
		for _, cmd := range asJSON {
			cmd = strings.TrimSpace(cmd)
			if cmd != "" {
				out = append(out, cmd)
			}
		}
		return out
	}

	parts := strings.FieldsFunc(trimmed, func(r rune) bool {
		return r == ';' || r == '\n'
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// FormatBracketed re-serializes a command list using the bracketed syntax,
// the round-trip direction spec §8 tests.
func FormatBracketed(cmds []string) string {
	var b strings.Builder
	for i, c := range cmds {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteByte('[')
		b.WriteString(c)
		b.WriteByte(']')
	}
	return b.String()
}

// downloadDependentCommands lists processing-stage command names that
// depend on artifacts produced by the download stage (spec §4.10): when
// download is disabled, these are skipped within processing rather than
// run against stale or missing files.
var downloadDependentCommands = map[string]bool{
	"unzip":                true,
	"mv":                   true,
	"zip":                  true,
	"zip_rename_date.sh":   true,
	"ogr2ogr":              true,
}

// FilterDownloadDependent removes commands whose first token names a
// download-dependent tool, used when the download stage was disabled by
// --no-download.
func FilterDownloadDependent(cmds []string) []string {
	out := make([]string, 0, len(cmds))
	for _, c := range cmds {
		fields := strings.Fields(c)
		if len(fields) == 0 {
			continue
		}
		if downloadDependentCommands[fields[0]] {
			continue
		}
		out = append(out, c)
	}
	return out
}
