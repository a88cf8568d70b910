// Package secrets resolves credentials that must stay out of committed
// config files, today just the gemini API key fed to the enrichment
// commands.
package secrets

import (
	"fmt"
	"os"
	"strings"
)

// Source describes where a secret lives. File points at a key file mounted
// by the deployment and takes precedence over the inline Value, so a config
// may carry both and the mounted file wins.
type Source struct {
	// Name labels the secret in error messages.
	Name string
	// Value is an inline secret from configuration or flags.
	Value string
	// File is a path to a file holding the secret.
	File string
}

// Load resolves the source to a trimmed secret value. Errors name the
// secret and, for file sources, the path, so operators can tell a missing
// mount from an unset config key.
func Load(src Source) (string, error) {
	name := strings.TrimSpace(src.Name)
	if name == "" {
		name = "secret"
	}

	if file := strings.TrimSpace(src.File); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading %s from file %q: %w", name, file, err)
		}
		secret := strings.TrimSpace(string(data))
		if secret == "" {
			return "", fmt.Errorf("%s file %q is empty", name, file)
		}
		return secret, nil
	}

	secret := strings.TrimSpace(src.Value)
	if secret == "" {
		return "", fmt.Errorf("%s is not configured", name)
	}
	return secret, nil
}
