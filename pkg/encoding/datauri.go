package encoding

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// DataURI formats data as a base64 data URI, e.g. "data:image/png;base64,...".
func DataURI(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// IsDataURI reports whether s looks like a data URI.
func IsDataURI(s string) bool {
	return strings.HasPrefix(s, "data:")
}

// ParseDataURI decodes a base64 data URI into its MIME type and bytes.
// Only the base64 form is supported.
func ParseDataURI(s string) (mimeType string, data []byte, err error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return "", nil, errors.New("encoding: not a data uri")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, errors.New("encoding: data uri missing payload")
	}
	mimeType, ok = strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", nil, fmt.Errorf("encoding: unsupported data uri encoding %q", meta)
	}
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("encoding: decode data uri: %w", err)
	}
	return mimeType, data, nil
}
