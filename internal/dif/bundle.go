package dif

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/getsentry/difcheck/internal/errorutil"
)

// resolveBundle maps a .dSYM bundle directory to the DWARF companion file it
// contains. Any other path is returned unchanged.
func resolveBundle(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return path, nil
	}
	dir := filepath.Join(path, "Contents", "Resources", "DWARF")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("dif: %w: %s is a directory and not a dSYM bundle", errorutil.ErrUnreadableFile, path)
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && e.Name()[0] != '.' {
			files = append(files, e.Name())
		}
	}
	if len(files) != 1 {
		return "", fmt.Errorf("dif: %w: dSYM bundle %s contains %d DWARF files, expected 1", errorutil.ErrUnreadableFile, path, len(files))
	}
	resolved := filepath.Join(dir, files[0])
	log.Debug().Str("bundle", path).Str("path", resolved).Msg("resolved dSYM bundle")
	return resolved, nil
}
