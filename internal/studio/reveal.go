package studio

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// RevealArtifact opens the platform file manager with the given artifact
// selected where the platform supports selection, falling back to opening the
// containing directory.
func RevealArtifact(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(abs); err != nil {
		return errors.New("studio: artifact not found on disk")
	}

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("explorer", "/select,"+abs)
	case "darwin":
		cmd = exec.Command("open", "-R", abs)
	default:
		cmd = exec.Command("xdg-open", filepath.Dir(abs))
	}
	return cmd.Start()
}
