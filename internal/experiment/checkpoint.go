package experiment

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrNoCheckpoint reports that a variant directory holds no best-model
// checkpoint.
var ErrNoCheckpoint = errors.New("no checkpoint found")

// LocateCheckpoint returns the newest regular file in dir that matches the
// checkpoint convention. Trainers occasionally leave more than one extension
// behind (a weights file next to a serialized archive); the most recently
// written one wins.
func LocateCheckpoint(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, checkpointGlob))
	if err != nil {
		return "", err
	}
	var newest string
	var newestMod time.Time
	for _, match := range matches {
		info, statErr := os.Stat(match)
		if statErr != nil || !info.Mode().IsRegular() {
			continue
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest = match
			newestMod = info.ModTime()
		}
	}
	if newest == "" {
		return "", fmt.Errorf("%w in %s", ErrNoCheckpoint, dir)
	}
	return newest, nil
}
