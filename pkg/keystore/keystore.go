// Package keystore persists the gateway's derived pre-shared key in a
// dotenv-style file. Other entries in the file are preserved on write, so the
// key can live next to unrelated settings in a project's .env.
package keystore

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

// KeyName is the entry holding the derived key, both in the file and in the
// process environment.
const KeyName = "PRESHARED_KEY"

// keyLine matches an assignment of KeyName, with or without an export prefix.
var keyLine = regexp.MustCompile(`^\s*(?:export\s+)?` + KeyName + `\s*[=:]`)

// Store reads and writes the derived key. It is safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	filePath string
}

// New creates a Store backed by filePath. The file does not need to exist.
func New(filePath string) (*Store, error) {
	abs, err := filepath.Abs(filePath)
	if err != nil {
		return nil, fmt.Errorf("keystore: resolve path: %w", err)
	}

	return &Store{filePath: abs}, nil
}

// Path returns the absolute path of the key file.
func (s *Store) Path() string { return s.filePath }

// Load returns the stored key. The file takes precedence; when it has no
// entry the PRESHARED_KEY environment variable is consulted. The boolean is
// false when no key is available from either source.
func (s *Store) Load() (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	env, err := s.read()
	if err != nil {
		return "", false, err
	}

	if key := env[KeyName]; key != "" {
		return key, true, nil
	}

	if key := os.Getenv(KeyName); key != "" {
		return key, true, nil
	}

	return "", false, nil
}

// Save writes key to the file. Only the PRESHARED_KEY assignment is touched:
// an existing one is replaced in place, otherwise one is appended. Every other
// line is written back unchanged.
func (s *Store) Save(key string) error {
	if key == "" {
		return errors.New("keystore: empty key")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("keystore: read %s: %w", s.filePath, err)
	}

	return s.write(setKey(data, key))
}

// setKey returns data with the first KeyName assignment replaced by key and
// any later ones removed.
func setKey(data []byte, key string) []byte {
	entry := []byte(KeyName + "=" + quote(key))

	lines := bytes.SplitAfter(data, []byte("\n"))
	out := make([][]byte, 0, len(lines)+1)
	replaced := false

	for _, line := range lines {
		if len(line) == 0 || !keyLine.Match(line) {
			out = append(out, line)
			continue
		}
		if replaced {
			continue
		}

		replaced = true
		if bytes.HasSuffix(line, []byte("\n")) {
			out = append(out, append(entry, '\n'))
		} else {
			out = append(out, entry)
		}
	}

	if !replaced {
		if len(data) > 0 && !bytes.HasSuffix(data, []byte("\n")) {
			out = append(out, []byte("\n"))
		}
		out = append(out, append(entry, '\n'))
	}

	return bytes.Join(out, nil)
}

var quoter = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	`$`, `\$`,
	"\n", `\n`,
	"\r", `\r`,
)

// quote renders v as a double-quoted dotenv value that reads back verbatim.
func quote(v string) string {
	return `"` + quoter.Replace(v) + `"`
}

// read must be called with s.mu held. A missing file yields an empty map.
func (s *Store) read() (map[string]string, error) {
	env, err := godotenv.Read(s.filePath)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("keystore: read %s: %w", s.filePath, err)
	}

	return env, nil
}

// write replaces the file atomically. Must be called with s.mu held.
func (s *Store) write(content []byte) error {
	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("keystore: create dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".keystore-*.tmp")
	if err != nil {
		return fmt.Errorf("keystore: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("keystore: write temp file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("keystore: close temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.filePath); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("keystore: rename temp file: %w", err)
	}

	return nil
}
