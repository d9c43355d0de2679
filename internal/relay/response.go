package relay

import (
	"bytes"
	"encoding/json"
)

type payloadKind int

const (
	payloadUnknown payloadKind = iota
	// [{"output": "..."}, ...]
	payloadOutputList
	// {"response": "...", "error"?: "..."}
	payloadResponseObject
)

// payload is the decoded webhook body. Only text and partialError are
// meaningful, and only for the known kinds.
type payload struct {
	kind         payloadKind
	text         string
	partialError string
}

type outputItem struct {
	Output *string `json:"output"`
}

type responseObject struct {
	Response *string        `json:"response"`
	Error    json.RawMessage `json:"error"`
}

// decodePayload classifies body into one of the accepted shapes. It returns
// an error only when body is not valid JSON; a valid document with an
// unrecognised shape yields payloadUnknown.
func decodePayload(body []byte) (payload, error) {
	var raw json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return payload{}, err
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return payload{}, nil
	}

	switch trimmed[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil || len(items) == 0 {
			return payload{}, nil
		}
		var first outputItem
		if err := json.Unmarshal(items[0], &first); err != nil || first.Output == nil {
			return payload{}, nil
		}
		return payload{kind: payloadOutputList, text: *first.Output}, nil

	case '{':
		var obj responseObject
		if err := json.Unmarshal(trimmed, &obj); err != nil || obj.Response == nil {
			return payload{}, nil
		}
		p := payload{kind: payloadResponseObject, text: *obj.Response}
		// A non-string error is ignored.
		var partial string
		if len(obj.Error) > 0 && json.Unmarshal(obj.Error, &partial) == nil {
			p.partialError = partial
		}
		return p, nil
	}
	return payload{}, nil
}
