package xpath

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// GetExecPath resolves an executable name through PATH; a name relative
// to the working directory is accepted as well.
func GetExecPath(name string) (string, error) {
	execPath, err := exec.LookPath(name)
	if err == nil {
		return execPath, nil
	}
	if !errors.Is(err, exec.ErrDot) {
		return "", err
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("unable to get current working directory: %w", err)
	}
	return exec.LookPath(filepath.Join(wd, name))
}
