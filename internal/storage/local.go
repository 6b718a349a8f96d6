package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ListVideos returns the .mp4 files directly inside dir, matching the
// extension case-insensitively. Subdirectories are not descended into.
func ListVideos(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var videos []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".mp4") {
			videos = append(videos, filepath.Join(dir, entry.Name()))
		}
	}

	return videos, nil
}
