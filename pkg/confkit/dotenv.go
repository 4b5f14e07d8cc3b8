package confkit

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/joho/godotenv"
	"github.com/zeromicro/go-zero/core/logx"
)

var dotenvOnce sync.Once

// LoadDotenvOnce reads .env files into the process environment once.
//
// CANDLEKEEP_ENV_FILE names a single file. Otherwise .env in the working
// directory is read, then .env at the project root. Variables already set
// win unless DOTENV_OVERLOAD=1. NO_DOTENV=1 disables loading.
func LoadDotenvOnce() {
	dotenvOnce.Do(loadDotenv)
}

func loadDotenv() {
	if os.Getenv("NO_DOTENV") == "1" {
		return
	}
	for _, path := range dotenvCandidates() {
		if !fileExists(path) {
			continue
		}
		var err error
		if os.Getenv("DOTENV_OVERLOAD") == "1" {
			err = godotenv.Overload(path)
		} else {
			err = godotenv.Load(path)
		}
		if err != nil {
			logx.Errorf("confkit: load %s: %v", path, err)
		}
	}
}

func dotenvCandidates() []string {
	if f := os.Getenv("CANDLEKEEP_ENV_FILE"); f != "" {
		return []string{f}
	}
	var out []string
	seen := make(map[string]bool)
	add := func(dir string) {
		p := filepath.Join(dir, ".env")
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	if wd, err := os.Getwd(); err == nil {
		add(wd)
	}
	if root, err := ProjectRoot(); err == nil {
		add(root)
	}
	return out
}
