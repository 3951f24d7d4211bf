// Package filex validates file names attached to shared secrets. The name is
// informational metadata that ends up in download prompts on the recipient
// side, so it must be safe to render and to write to disk on any host OS.
package filex

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/sealbox/sealbox/internal/common"
)

// MaxNameLength bounds the stored file name in bytes.
const MaxNameLength = 255

// reservedNames are device names Windows refuses as file names, with or
// without an extension.
var reservedNames = map[string]struct{}{
	"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
	"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {},
	"COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
	"LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {},
	"LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
}

// blockedExtensions are extensions a double click executes on common
// desktops. Secrets carrying them are rejected at creation time.
var blockedExtensions = map[string]struct{}{
	".exe": {}, ".bat": {}, ".cmd": {}, ".com": {}, ".scr": {},
	".ps1": {}, ".msi": {}, ".js": {}, ".vbs": {}, ".jar": {}, ".lnk": {},
}

// ValidateName checks a file name for use as secret metadata. All failures
// wrap common.ErrorValidation so callers can match the class with errors.Is.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: file name is empty", common.ErrorValidation)
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("%w: file name longer than %d bytes", common.ErrorValidation, MaxNameLength)
	}
	if strings.ContainsAny(name, `/\`) || name != filepath.Base(name) {
		return fmt.Errorf("%w: file name must not contain path separators", common.ErrorValidation)
	}
	if name == "." || name == ".." {
		return fmt.Errorf("%w: invalid file name %q", common.ErrorValidation, name)
	}
	for _, r := range name {
		if r == unicode.ReplacementChar || unicode.IsControl(r) || !unicode.IsPrint(r) {
			return fmt.Errorf("%w: file name contains non-printable characters", common.ErrorValidation)
		}
	}

	base := strings.ToUpper(name)
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	if _, ok := reservedNames[base]; ok {
		return fmt.Errorf("%w: %q is a reserved device name", common.ErrorValidation, name)
	}

	if ext := strings.ToLower(filepath.Ext(name)); ext != "" {
		if _, ok := blockedExtensions[ext]; ok {
			return fmt.Errorf("%w: file type %q is not allowed", common.ErrorValidation, ext)
		}
	}

	return nil
}
