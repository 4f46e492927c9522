package config

import (
	"strings"

	"github.com/rbright/parley/internal/paths"
)

// ResolvePath returns explicit when set, otherwise the XDG config file.
func ResolvePath(explicit string) (string, error) {
	if strings.TrimSpace(explicit) != "" {
		return explicit, nil
	}
	return paths.ConfigFile()
}
