package file

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/atbitcoin/handlekeeper/internal/core/domain"
)

const jsonExt = ".json"

var (
	// ErrNotJSONFile ...
	ErrNotJSONFile = fmt.Errorf("%w: please select a JSON file", domain.ErrValidation)
	// ErrInvalidJSON ...
	ErrInvalidJSON = fmt.Errorf("%w: invalid JSON format in file", domain.ErrValidation)
)

// Save writes data as indented JSON to path, replacing any existing file.
// Exported keystores hold no secret but are still private, hence the
// restricted permissions.
func Save(path string, data interface{}) error {
	buf, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}
	}
	return os.WriteFile(path, append(buf, '\n'), 0600)
}

// Open reads the JSON file at path and returns its raw content and base
// name. The content is only checked to be well-formed JSON.
func Open(path string) ([]byte, string, error) {
	name := filepath.Base(path)
	if !strings.HasSuffix(strings.ToLower(name), jsonExt) {
		return nil, "", ErrNotJSONFile
	}

	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	buf = bytes.TrimSpace(buf)
	if !json.Valid(buf) {
		return nil, "", fmt.Errorf("%w: %s", ErrInvalidJSON, name)
	}
	return buf, name, nil
}

// SignedFileName returns the name of the signed counterpart of a JSON file,
// ie. note.json => note_signed.json.
func SignedFileName(path string) string {
	dir, name := filepath.Split(path)
	if strings.HasSuffix(strings.ToLower(name), jsonExt) {
		name = name[:len(name)-len(jsonExt)]
	}
	return filepath.Join(dir, name+"_signed"+jsonExt)
}
