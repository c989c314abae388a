package rules

import (
	"fmt"
	"strconv"
	"strings"
)

// InitialVersion is the version every new rule record starts at.
const InitialVersion = "1.0.0"

// IncrementPatch bumps the PATCH component of a MAJOR.MINOR.PATCH version.
func IncrementPatch(version string) (string, error) {
	parts := strings.Split(version, ".")
	if len(parts) != 3 {
		return "", fmt.Errorf("version %q is not MAJOR.MINOR.PATCH", version)
	}
	for _, p := range parts[:2] {
		if _, err := strconv.Atoi(p); err != nil {
			return "", fmt.Errorf("version %q: %w", version, err)
		}
	}
	patch, err := strconv.Atoi(parts[2])
	if err != nil || patch < 0 {
		return "", fmt.Errorf("version %q has invalid patch component", version)
	}
	parts[2] = strconv.Itoa(patch + 1)
	return strings.Join(parts, "."), nil
}
