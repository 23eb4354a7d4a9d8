package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// findTemplateFiles walks the configured path and returns all template
// files matching the configured extension. A direct file path is accepted
// regardless of extension.
func (a *App) findTemplateFiles() ([]string, error) {
	path := a.config.TemplatesPath
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("error accessing path %s: %w", path, err)
	}

	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	seen := make(map[string]struct{})
	err = filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(p) != a.config.Ext {
			return nil
		}
		if _, wasSeen := seen[p]; !wasSeen {
			files = append(files, p)
			seen[p] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
