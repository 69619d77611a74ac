package encoding

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Media is an inline binary payload and its MIME type.
//
// In JSON it is written as a base64 data URI string. Decoding also accepts
// a bare base64 string (MIMEType left empty) and an object of the form
// {"mime": "image/png", "data": "<base64>"}.
type Media struct {
	MIMEType string
	Data     []byte
}

// Empty reports whether m carries no bytes.
func (m *Media) Empty() bool {
	return m == nil || len(m.Data) == 0
}

// String returns m as a data URI.
func (m Media) String() string {
	return DataURI(m.MIMEType, m.Data)
}

// MarshalJSON implements json.Marshaler.
func (m Media) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Media) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("encoding: unmarshal media: empty data")
	}
	switch data[0] {
	case 'n':
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if IsDataURI(s) {
			mimeType, b, err := ParseDataURI(s)
			if err != nil {
				return err
			}
			m.MIMEType, m.Data = mimeType, b
			return nil
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return fmt.Errorf("encoding: unmarshal media: %w", err)
		}
		m.MIMEType, m.Data = "", b
		return nil
	case '{':
		var obj struct {
			MIMEType string `json:"mime"`
			Data     []byte `json:"data"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return fmt.Errorf("encoding: unmarshal media: %w", err)
		}
		m.MIMEType, m.Data = obj.MIMEType, obj.Data
		return nil
	}
	return fmt.Errorf("encoding: invalid media: %s", data)
}
