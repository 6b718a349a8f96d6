// Package caption manages the sidecar text files that carry a video's post
// caption: one .txt next to each .mp4, plus the clients that produce the text.
package caption

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const Extension = ".txt"

// SidecarPath returns the caption file for a video: same path with the
// extension swapped for .txt.
func SidecarPath(videoPath string) string {
	return strings.TrimSuffix(videoPath, filepath.Ext(videoPath)) + Extension
}

func Exists(videoPath string) bool {
	_, err := os.Stat(SidecarPath(videoPath))
	return err == nil
}

// Read loads the caption for a video, trimmed of surrounding whitespace.
func Read(videoPath string) (string, error) {
	data, err := os.ReadFile(SidecarPath(videoPath))
	if err != nil {
		return "", fmt.Errorf("failed to read caption file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Write stores the caption next to the video and returns the sidecar path.
func Write(videoPath, text string) (string, error) {
	path := SidecarPath(videoPath)
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return "", fmt.Errorf("failed to write caption file: %w", err)
	}
	return path, nil
}
