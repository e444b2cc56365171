package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultRootDir is the plan root created by InitRoot.
const DefaultRootDir = ".plangraph"

// ConfigFile is the name of the optional config file inside a plan root.
const ConfigFile = "config.yaml"

// DiscoverRoot returns the plan root to use. PLANGRAPH_ROOT wins; otherwise
// .plangraph is looked up in the current directory only, never its parents,
// so a nested checkout cannot pick up an enclosing project's plans.
func DiscoverRoot() (string, error) {
	if root := os.Getenv("PLANGRAPH_ROOT"); root != "" {
		return root, nil
	}

	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}
	return discoverRootInDir(dir)
}

func discoverRootInDir(dir string) (string, error) {
	root := filepath.Join(dir, DefaultRootDir)
	if info, err := os.Stat(root); err == nil && info.IsDir() {
		abs, err := filepath.Abs(root)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		return abs, nil
	}

	return "", fmt.Errorf(
		"no %s directory found in %s\n"+
			"  Run 'plangraph init' to create one here\n"+
			"  Or use --root to point at an existing plan root",
		DefaultRootDir, dir)
}

// InitRoot creates <dir>/.plangraph with a starter config file and returns
// the root path. An existing root is an error.
func InitRoot(dir string) (string, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return "", fmt.Errorf("directory does not exist: %s", dir)
	}

	root := filepath.Join(dir, DefaultRootDir)
	if _, err := os.Stat(root); err == nil {
		return "", fmt.Errorf("plan root already exists: %s", root)
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", root, err)
	}

	starter := []byte("# plangraph configuration\n" +
		"storage:\n" +
		"  backend: fs\n" +
		"log:\n" +
		"  level: info\n")
	if err := os.WriteFile(filepath.Join(root, ConfigFile), starter, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", ConfigFile, err)
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}
	return abs, nil
}
