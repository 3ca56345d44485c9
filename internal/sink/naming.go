package sink

import (
	"fmt"
	"strings"
)

// The player targets legacy 8.3 filesystems: up to eight name characters, a
// dot, and a three-character extension.
const maxShortNameLen = 12

// ValidateShortName checks that name fits the 8.3 convention and carries one
// of the recognized audio extensions. The capture core otherwise treats the
// name opaquely.
func ValidateShortName(name string, extensions []string) error {
	if name == "" {
		return fmt.Errorf("filename is empty")
	}
	if len(name) > maxShortNameLen {
		return fmt.Errorf("filename %q exceeds %d characters", name, maxShortNameLen)
	}

	dot := strings.LastIndex(name, ".")
	if dot <= 0 || dot == len(name)-1 {
		return fmt.Errorf("filename %q must be of the form NAME.EXT", name)
	}

	base, ext := name[:dot], name[dot+1:]
	if len(base) > 8 {
		return fmt.Errorf("filename %q base exceeds 8 characters", name)
	}
	if len(ext) > 3 {
		return fmt.Errorf("filename %q extension exceeds 3 characters", name)
	}

	for _, allowed := range extensions {
		if strings.EqualFold(ext, allowed) {
			return nil
		}
	}
	return fmt.Errorf("filename %q has unsupported extension %q (supported: %s)",
		name, ext, strings.Join(extensions, ", "))
}

// CleanShortName strips characters that are not representable in an 8.3 name.
func CleanShortName(name string) string {
	var result strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '.' || r == '_' || r == '-' {
			result.WriteRune(r)
		}
	}
	return strings.ToUpper(result.String())
}
