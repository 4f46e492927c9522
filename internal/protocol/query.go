package protocol

import (
	"encoding/json"
	"strings"
)

// QueryData is the answer payload of a query_result. Fields the client does
// not model are kept in Extra so they reach the UI unchanged.
type QueryData struct {
	Valid  bool
	Answer string
	Audio  string
	Extra  map[string]json.RawMessage
}

// Usable reports whether the payload has a valid, non-empty answer.
func (d *QueryData) Usable() bool {
	return d != nil && d.Valid && strings.TrimSpace(d.Answer) != ""
}

func (d *QueryData) UnmarshalJSON(raw []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return err
	}

	*d = QueryData{}
	if err := takeField(fields, "valid", &d.Valid); err != nil {
		return err
	}
	if err := takeField(fields, "answer", &d.Answer); err != nil {
		return err
	}
	if err := takeField(fields, "audio", &d.Audio); err != nil {
		return err
	}
	if len(fields) > 0 {
		d.Extra = fields
	}
	return nil
}

func (d QueryData) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Extra)+3)
	for k, v := range d.Extra {
		out[k] = v
	}
	out["valid"] = d.Valid
	if d.Answer != "" {
		out["answer"] = d.Answer
	}
	if d.Audio != "" {
		out["audio"] = d.Audio
	}
	return json.Marshal(out)
}

// takeField decodes and removes key from fields. JSON null leaves dst as is.
func takeField(fields map[string]json.RawMessage, key string, dst any) error {
	raw, ok := fields[key]
	if !ok {
		return nil
	}
	delete(fields, key)
	if string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
