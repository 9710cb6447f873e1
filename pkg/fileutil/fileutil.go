// Package fileutil provides case-insensitive lookup of MIDI files on real and
// in-memory file systems.
package fileutil

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// midiExtensions are the file extensions accepted as Standard MIDI Files.
var midiExtensions = map[string]bool{
	".mid":  true,
	".midi": true,
	".smf":  true,
	".kar":  true,
}

// IsMIDIFile reports whether name carries a Standard MIDI File extension.
// The comparison ignores case.
func IsMIDIFile(name string) bool {
	return midiExtensions[strings.ToLower(filepath.Ext(name))]
}

// ResolvePath returns the path of an existing file matching p. An exact match
// wins; otherwise the last element is matched case-insensitively within its
// directory, so "SONG.MID" finds "song.mid".
//
// Example:
//
//	path, err := ResolvePath("/music/Theme.MID")
//	// Will find "theme.mid", "THEME.MID", "Theme.mid", etc.
func ResolvePath(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("empty path: %w", fs.ErrNotExist)
	}
	if info, err := os.Stat(p); err == nil && !info.IsDir() {
		return p, nil
	}
	return FindFileCaseInsensitive(filepath.Dir(p), filepath.Base(p))
}

// FindFileCaseInsensitive searches dir for a regular file whose name matches
// filename ignoring case, and returns its joined path.
func FindFileCaseInsensitive(dir, filename string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	name, ok := matchEntry(entries, filename)
	if !ok {
		return "", fmt.Errorf("file not found: %s (searched in %s): %w", filename, dir, fs.ErrNotExist)
	}
	return filepath.Join(dir, name), nil
}

// FindFileCaseInsensitiveFS is FindFileCaseInsensitive for an fs.FS
// (embed.FS, os.DirFS, fstest.MapFS). Paths use forward slashes.
func FindFileCaseInsensitiveFS(fsys fs.FS, dir, filename string) (string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return "", fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	name, ok := matchEntry(entries, filename)
	if !ok {
		return "", fmt.Errorf("file not found: %s (searched in %s): %w", filename, dir, fs.ErrNotExist)
	}
	return path.Join(dir, name), nil
}

func matchEntry(entries []fs.DirEntry, filename string) (string, bool) {
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(entry.Name(), filename) {
			return entry.Name(), true
		}
	}
	return "", false
}
