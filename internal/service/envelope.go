package service

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// documentVersion tags every stored roster and progress document
const documentVersion = 1

type envelope struct {
	Version int             `json:"version"`
	Data    json.RawMessage `json:"data"`
}

func encodeDocument(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Version: documentVersion, Data: data})
}

// decodeDocument unwraps a versioned document into v. Documents written
// before versioning (no "version" field) are decoded as the bare payload.
func decodeDocument(raw []byte, v interface{}) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return fmt.Errorf("empty document")
	}

	if trimmed[0] == '{' {
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &probe); err != nil {
			return err
		}
		if _, versioned := probe["version"]; versioned {
			var env envelope
			if err := json.Unmarshal(trimmed, &env); err != nil {
				return err
			}
			if env.Version != documentVersion {
				return fmt.Errorf("%w: %d", ErrUnsupportedVersion, env.Version)
			}
			if len(env.Data) == 0 {
				return fmt.Errorf("document has no data")
			}
			return json.Unmarshal(env.Data, v)
		}
	}

	return json.Unmarshal(trimmed, v)
}
