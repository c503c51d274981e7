package command

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrDangerousCommand is returned for command lines the tool refuses to run.
var ErrDangerousCommand = errors.New("dangerous command")

var (
	blockedPrograms = map[string]struct{}{
		"sudo": {}, "su": {}, "doas": {}, "mkfs": {}, "format": {},
		"eval": {}, "shutdown": {}, "reboot": {}, "halt": {},
	}

	blockedFragments = []string{
		"rm -rf", "rm -fr", "chmod 777", "chmod -r 777", "dd if=", ":(){",
		"| sh", "|sh", "| bash", "|bash", "> /dev/sd",
	}
)

// Check rejects command lines that invoke privileged or destructive
// programs. Matching is case-insensitive and works on whole argv tokens,
// plus a small set of destructive fragments on the joined line.
func Check(name string, args []string) error {
	tokens := append([]string{name}, args...)
	for _, tok := range tokens {
		base := strings.ToLower(filepath.Base(tok))
		if strings.HasPrefix(base, "mkfs.") {
			base = "mkfs"
		}
		if _, blocked := blockedPrograms[base]; blocked {
			return fmt.Errorf("%w: %q is not allowed", ErrDangerousCommand, tok)
		}
	}

	line := strings.ToLower(strings.Join(tokens, " "))
	for _, frag := range blockedFragments {
		if strings.Contains(line, frag) {
			return fmt.Errorf("%w: contains %q", ErrDangerousCommand, frag)
		}
	}
	return nil
}
