package uploads

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var allowedExtensions = map[string]struct{}{
	"csv": {},
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

var windowsDeviceFiles = map[string]struct{}{
	"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
	"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {}, "COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
	"LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {}, "LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
}

// AllowedFile reports whether name carries an allowed extension. The check
// looks at the text after the last dot only, case-insensitively.
func AllowedFile(name string) bool {
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return false
	}
	_, ok := allowedExtensions[strings.ToLower(name[idx+1:])]
	return ok
}

// SecureFilename returns a flat ASCII name safe to store in the upload
// directory. It can return an empty string, callers must check.
func SecureFilename(name string) string {
	name = norm.NFKD.String(name)

	var b strings.Builder
	for _, r := range name {
		if r < 0x80 {
			b.WriteRune(r)
		}
	}
	name = b.String()

	name = strings.NewReplacer("/", " ", "\\", " ").Replace(name)
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeChars.ReplaceAllString(name, "")
	name = strings.Trim(name, "._")

	if name != "" {
		base, _, _ := strings.Cut(name, ".")
		if _, reserved := windowsDeviceFiles[strings.ToUpper(base)]; reserved {
			name = "_" + name
		}
	}
	return name
}

// ReportNames returns the HTML and JSON report file names derived from an
// upload name.
func ReportNames(name string) (html string, json string) {
	return name + "_report.html", name + "_report.json"
}
