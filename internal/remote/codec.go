package remote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

type serverTimestamp struct{}

// ServerTimestamp is a placeholder field value the backend replaces with its
// own clock at write time.
var ServerTimestamp any = serverTimestamp{}

const serverValueKey = ".sv"

func (serverTimestamp) MarshalJSON() ([]byte, error) {
	return []byte(`{".sv":"timestamp"}`), nil
}

// IsServerTimestamp reports whether v is the ServerTimestamp placeholder,
// including its decoded wire form.
func IsServerTimestamp(v any) bool {
	switch x := v.(type) {
	case serverTimestamp:
		return true
	case map[string]any:
		return len(x) == 1 && x[serverValueKey] == "timestamp"
	}
	return false
}

// ResolveServerTimestamps returns a copy of doc with every placeholder set to now.
func ResolveServerTimestamps(doc Document, now time.Time) Document {
	out := doc.Clone()
	for k, v := range out {
		if IsServerTimestamp(v) {
			out[k] = now.UTC()
		}
	}
	return out
}

// EncodeDocument serializes a document for backends that store JSON.
// Times encode as RFC 3339 strings, decimals as quoted strings.
func EncodeDocument(doc Document) ([]byte, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return b, nil
}

// DecodeDocument parses a stored JSON document, restoring ServerTimestamp
// placeholders that travelled over the wire.
func DecodeDocument(b []byte) (Document, error) {
	var doc Document
	dec := json.NewDecoder(bytes.NewReader(b))
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if doc == nil {
		doc = Document{}
	}
	for k, v := range doc {
		if IsServerTimestamp(v) {
			doc[k] = ServerTimestamp
		}
	}
	return doc, nil
}
