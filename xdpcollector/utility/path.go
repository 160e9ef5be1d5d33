// xdpcollector/utility/path.go
package utility

import (
	"fmt"
	"os"
	"path/filepath"

	"xdpstats/config"
)

// GetProjectRoot returns the root directory of the project where the executable is located.
func GetProjectRoot() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(exe), nil
}

// ObjectPath returns override when set, otherwise the object built by
// `make` next to the executable: <root>/xdpcollector/<stem>.o.
func ObjectPath(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	root, err := GetProjectRoot()
	if err != nil {
		return "", fmt.Errorf("get project root: %w", err)
	}
	return filepath.Join(root, "xdpcollector", config.ObjectStem+".o"), nil
}
