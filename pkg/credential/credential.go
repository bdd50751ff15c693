// Package credential finds the Gemini API key. The key is only ever held in
// memory.
package credential

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"golang.org/x/term"
)

// EnvKeys are checked in order.
var EnvKeys = []string{"GOOGLE_API_KEY", "GEMINI_API_KEY"}

// ErrNoCredential is returned when no key is configured and none can be
// prompted for.
var ErrNoCredential = errors.New("no API key configured: set GOOGLE_API_KEY or GEMINI_API_KEY")

// LoadEnvFile loads secrets from path into the environment without overriding
// variables that are already set. A missing file is ignored.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Lookup returns the first non-empty key from EnvKeys.
func Lookup() string {
	for _, k := range EnvKeys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

// Prompt asks for the key on a terminal without echoing it.
func Prompt(in *os.File, out io.Writer) (string, error) {
	if !term.IsTerminal(int(in.Fd())) {
		return "", ErrNoCredential
	}
	fmt.Fprint(out, "Enter your Google API key: ")
	b, err := term.ReadPassword(int(in.Fd()))
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("failed to read API key: %w", err)
	}
	key := strings.TrimSpace(string(b))
	if key == "" {
		return "", ErrNoCredential
	}
	return key, nil
}

// Get loads envFile, then returns the configured key or prompts for one.
func Get(envFile string, in *os.File, out io.Writer) (string, error) {
	if err := LoadEnvFile(envFile); err != nil {
		return "", err
	}
	if key := Lookup(); key != "" {
		return key, nil
	}
	return Prompt(in, out)
}
