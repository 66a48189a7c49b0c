package sensor

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/robudan/acoustic-logger/internal/errors"
)

// Probe scans byIDDir (a platform-specific symlink directory, typically
// /dev/serial/by-id on Linux) for an entry whose name contains one of
// keywords, and resolves it to the real serial device path. The matched
// keyword determines which concrete Model backs the connection, per
// Design Notes §9 ("distinguished by detection keywords").
func Probe(byIDDir string, keywords []string) (Model, string, error) {
	entries, err := os.ReadDir(byIDDir)
	if err != nil {
		return "", "", errors.New(err).
			Component("sensor").
			Category(errors.CategoryDevice).
			Context("byIdDir", byIDDir).
			Build()
	}

	for _, entry := range entries {
		name := strings.ToLower(entry.Name())
		for _, keyword := range keywords {
			if !strings.Contains(name, strings.ToLower(keyword)) {
				continue
			}

			model := matchModel(keyword)
			if model == "" {
				continue
			}

			linkPath := filepath.Join(byIDDir, entry.Name())
			resolved, err := filepath.EvalSymlinks(linkPath)
			if err != nil {
				return "", "", errors.New(err).
					Component("sensor").
					Category(errors.CategoryDevice).
					Context("link", linkPath).
					Build()
			}
			return model, resolved, nil
		}
	}

	return "", "", errors.Newf("sensor: no device matching keywords %v found in %s", keywords, byIDDir).
		Component("sensor").
		Category(errors.CategoryNotFound).
		Build()
}

func matchModel(keyword string) Model {
	switch strings.ToLower(keyword) {
	case "mk3":
		return ModelMk3
	case "mk4":
		return ModelMk4
	default:
		return ""
	}
}

// Open constructs the concrete Driver for model at the given serial path.
func Open(model Model, path string) (Driver, error) {
	switch model {
	case ModelMk3:
		return newMk3(path)
	case ModelMk4:
		return newMk4(path)
	default:
		return nil, errors.Newf("sensor: unknown model %q", model).
			Component("sensor").
			Category(errors.CategoryValidation).
			Build()
	}
}
