package safename

import (
	"path"
	"regexp"
	"strings"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9.-]`)

// Sanitize replaces every character outside [A-Za-z0-9.-] with '_'.
func Sanitize(name string) string {
	return unsafeChars.ReplaceAllString(name, "_")
}

// Base strips any client-supplied directory part, accepting both slash styles.
func Base(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	base := path.Base(name)
	if base == "." || base == "/" {
		return ""
	}
	return base
}
