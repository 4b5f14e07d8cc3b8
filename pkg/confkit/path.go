package confkit

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// RootEnv pins the project root, e.g. inside a container without go.mod.
const RootEnv = "CANDLEKEEP_ROOT"

const maxWalkDepth = 8

// ProjectRoot locates the directory holding go.mod or .git. It honours
// CANDLEKEEP_ROOT, then walks up from the working directory, then from this
// source file. The working directory is the last resort.
func ProjectRoot() (string, error) {
	if root := strings.TrimSpace(os.Getenv(RootEnv)); root != "" {
		return filepath.Abs(root)
	}
	wd, err := os.Getwd()
	if err != nil {
		return ".", fmt.Errorf("getwd: %w", err)
	}
	if root, ok := findMarker(wd); ok {
		return root, nil
	}
	if _, file, _, ok := runtime.Caller(0); ok {
		if root, ok := findMarker(filepath.Dir(file)); ok {
			return root, nil
		}
	}
	return wd, nil
}

// findMarker walks up from dir looking for a repository marker.
func findMarker(dir string) (string, bool) {
	for i := 0; i < maxWalkDepth; i++ {
		if isRoot(dir) {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false
}

func isRoot(dir string) bool {
	return fileExists(filepath.Join(dir, "go.mod")) || fileExists(filepath.Join(dir, ".git"))
}

// ProjectPath joins the project root with rel.
func ProjectPath(rel string) (string, error) {
	root, err := ProjectRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, rel), nil
}

// MustProjectPath is ProjectPath that panics.
func MustProjectPath(rel string) string {
	p, err := ProjectPath(rel)
	if err != nil {
		panic(err)
	}
	return p
}
