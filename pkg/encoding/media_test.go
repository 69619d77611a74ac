package encoding

import (
	"bytes"
	"encoding/json"
	"testing"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G'}

func TestMediaMarshalJSON(t *testing.T) {
	b, err := json.Marshal(Media{MIMEType: "image/png", Data: pngHeader})
	if err != nil {
		t.Fatal(err)
	}
	if want := `"data:image/png;base64,iVBORw=="`; string(b) != want {
		t.Errorf("Marshal = %s, want %s", b, want)
	}
}

func TestMediaUnmarshalJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantMIME string
		want     []byte
		wantErr  bool
	}{
		{name: "data uri", input: `"data:image/png;base64,iVBORw=="`, wantMIME: "image/png", want: pngHeader},
		{name: "escaped data uri", input: `"data:image\/png;base64,iVBORw=="`, wantMIME: "image/png", want: pngHeader},
		{name: "bare base64", input: `"iVBORw=="`, want: pngHeader},
		{name: "object", input: `{"mime":"image/jpeg","data":"iVBORw=="}`, wantMIME: "image/jpeg", want: pngHeader},
		{name: "null", input: `null`},
		{name: "bad base64", input: `"not base64!"`, wantErr: true},
		{name: "bad data uri", input: `"data:image/png,plain"`, wantErr: true},
		{name: "number", input: `42`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m Media
			err := json.Unmarshal([]byte(tt.input), &m)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Unmarshal(%s) should fail, got %+v", tt.input, m)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unmarshal(%s) error: %v", tt.input, err)
			}
			if m.MIMEType != tt.wantMIME || !bytes.Equal(m.Data, tt.want) {
				t.Errorf("Unmarshal(%s) = %+v", tt.input, m)
			}
		})
	}
}

func TestMediaInStruct(t *testing.T) {
	var msg struct {
		Image *Media `json:"image,omitempty"`
	}
	if err := json.Unmarshal([]byte(`{}`), &msg); err != nil {
		t.Fatal(err)
	}
	if !msg.Image.Empty() {
		t.Errorf("missing image should be empty")
	}
	if err := json.Unmarshal([]byte(`{"image":"data:image/gif;base64,R0lG"}`), &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Image.Empty() || msg.Image.MIMEType != "image/gif" || string(msg.Image.Data) != "GIF" {
		t.Errorf("image = %+v", msg.Image)
	}
}
