package shared

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads .env.local and .env from the working directory.
//
// Variables already present in the environment win, matching godotenv's behavior.
// Setting HLSX_DOTENV=0 disables loading. Returns the files that were loaded.
func LoadDotEnv() ([]string, error) {
	if dotEnvDisabled() {
		return nil, nil
	}

	var loaded []string
	for _, p := range []string{".env.local", ".env"} {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return loaded, err
		}
		loaded = append(loaded, p)
	}
	return loaded, nil
}

func dotEnvDisabled() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("HLSX_DOTENV"))) {
	case "0", "false", "off", "no":
		return true
	default:
		return false
	}
}
