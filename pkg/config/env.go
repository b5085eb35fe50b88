package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

// EnvFileVar lists the .env files, comma separated, read before the first Load.
// When it is unset the .env file in the working directory is read.
const EnvFileVar = "TWOFA_ENV_FILE"

var defaultEnvLoaded sync.Once

// loadDefaultEnvFiles reads the files named by EnvFileVar once per process.
// Missing files are ignored and values already set in the process win.
func loadDefaultEnvFiles() {
	defaultEnvLoaded.Do(func() {
		for _, path := range envFiles(os.Getenv(EnvFileVar)) {
			_ = godotenv.Load(path)
		}
	})
}

func envFiles(list string) []string {
	var paths []string
	for _, p := range strings.Split(list, ",") {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		return []string{".env"}
	}
	return paths
}

// LoadEnv reads one or more .env files into the process environment.
// Later files override earlier ones and values already set in the process.
// Without arguments the default .env in the working directory is read.
func LoadEnv(paths ...string) error {
	if err := godotenv.Overload(paths...); err != nil {
		return errors.Join(ErrLoadingEnvFile, err)
	}
	return nil
}

// MustLoadEnv works like LoadEnv but panics on failure.
func MustLoadEnv(paths ...string) {
	if err := LoadEnv(paths...); err != nil {
		panic(fmt.Sprintf("Failed to load env files: %v", err))
	}
}
