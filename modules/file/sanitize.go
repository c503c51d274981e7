package file

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	// ErrUnsafePath is returned for paths the file tools refuse to touch.
	ErrUnsafePath = errors.New("unsafe path")

	reservedNames = map[string]struct{}{
		"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
		"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {},
		"COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
		"LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {},
		"LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
	}
)

func unsafePath(path, reason string) error {
	return fmt.Errorf("%w %q: %s", ErrUnsafePath, path, reason)
}

// SanitizePath rejects empty paths, home directory expansion, parent
// directory segments, NUL bytes and reserved device names. The returned
// path is cleaned.
func SanitizePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", unsafePath(path, "path must not be empty")
	}
	if strings.ContainsRune(path, 0) {
		return "", unsafePath(path, "path contains a NUL byte")
	}
	if strings.HasPrefix(path, "~") {
		return "", unsafePath(path, "home directory expansion is not allowed")
	}

	for _, seg := range strings.FieldsFunc(filepath.ToSlash(path), func(r rune) bool { return r == '/' || r == '\\' }) {
		if seg == ".." {
			return "", unsafePath(path, "parent directory references are not allowed")
		}
		base := strings.ToUpper(strings.TrimSuffix(seg, filepath.Ext(seg)))
		if _, reserved := reservedNames[base]; reserved {
			return "", unsafePath(path, "reserved file name")
		}
	}
	return filepath.Clean(path), nil
}

// resolve sanitizes path and anchors relative paths under the module root.
func (m *Module) resolve(path string) (string, error) {
	clean, err := SanitizePath(path)
	if err != nil {
		return "", err
	}
	if m.Root == "" {
		return clean, nil
	}
	if !filepath.IsAbs(clean) {
		return filepath.Join(m.Root, clean), nil
	}
	rel, err := filepath.Rel(m.Root, clean)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", unsafePath(path, "path is outside the workspace root")
	}
	return clean, nil
}
