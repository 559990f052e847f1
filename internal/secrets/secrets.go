// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads credentials from plain-text files. A secrets
// directory holds one secret per file: the filename is the key name and the
// trimmed file contents are the value. A credentials file holds a database
// user and password on one tab-separated line.
//
// Recognised key files: db-user, db-password, db-dsn.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files produce a warning on stderr but do not abort.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not read secret %s: %v\n", name, err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// Credentials is a database user and password.
type Credentials struct {
	User     string
	Password string
}

// ReadCredentials parses a one-line "user<TAB>password" file.
func ReadCredentials(path string) (Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Credentials{}, fmt.Errorf("reading credentials %s: %w", path, err)
	}
	line, _, _ := strings.Cut(string(data), "\n")
	user, password, ok := strings.Cut(strings.TrimRight(line, "\r"), "\t")
	if !ok || user == "" {
		return Credentials{}, fmt.Errorf("credentials %s: expected user<TAB>password on the first line", path)
	}
	return Credentials{User: user, Password: password}, nil
}
