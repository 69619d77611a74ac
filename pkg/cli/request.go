package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadRequest decodes a YAML or JSON request file into v. A path of "-"
// reads standard input.
func LoadRequest(path string, v any) error {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", displayName(path), err)
	}
	return ParseRequest(data, path, v)
}

// ParseRequest decodes data into v. Files ending in .json are decoded as
// JSON, everything else as YAML. Unknown fields are rejected.
func ParseRequest(data []byte, filename string, v any) error {
	if strings.EqualFold(filepath.Ext(filename), ".json") {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(v); err != nil {
			return fmt.Errorf("failed to parse %s as JSON: %w", displayName(filename), err)
		}
		return nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse %s: %w", displayName(filename), err)
	}
	return nil
}

func displayName(path string) string {
	if path == "-" || path == "" {
		return "stdin"
	}
	return path
}
