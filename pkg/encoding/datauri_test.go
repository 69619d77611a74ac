package encoding

import (
	"bytes"
	"testing"
)

func TestDataURI_RoundTrip(t *testing.T) {
	data := []byte{0x89, 'P', 'N', 'G', 0x00, 0xff}
	uri := DataURI("image/png", data)

	if !IsDataURI(uri) {
		t.Fatalf("IsDataURI(%q) = false", uri)
	}
	if want := "data:image/png;base64,iVBORwD/"; uri != want {
		t.Errorf("DataURI = %q, want %q", uri, want)
	}

	mime, got, err := ParseDataURI(uri)
	if err != nil {
		t.Fatalf("ParseDataURI error: %v", err)
	}
	if mime != "image/png" {
		t.Errorf("mime = %q, want image/png", mime)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("data = %v, want %v", got, data)
	}
}

func TestParseDataURI_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not data uri", "https://example.com/a.png"},
		{"missing comma", "data:image/png;base64"},
		{"not base64", "data:text/plain,hello"},
		{"bad payload", "data:image/png;base64,!!!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := ParseDataURI(tt.input); err == nil {
				t.Errorf("ParseDataURI(%q) should fail", tt.input)
			}
		})
	}
}
