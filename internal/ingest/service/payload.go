package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"leitstand/pkg/domain"
	dErrors "leitstand/pkg/domain-errors"
)

const domainKey = "domain"

// member is one key/value pair of a JSON object, value kept verbatim.
type member struct {
	key   string
	value json.RawMessage
}

// encodeEntries turns a body holding one JSON object or an array of objects
// into compact JSONL lines, each with "domain" set to name. Key order and
// number literals are preserved as sent.
func encodeEntries(body []byte, name domain.Name) ([][]byte, error) {
	if !utf8.Valid(body) || !json.Valid(body) {
		return nil, dErrors.New(dErrors.CodeInvalidJSON, "invalid json")
	}

	trimmed := bytes.TrimSpace(body)
	var entries []json.RawMessage
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInvalidJSON, "invalid json")
		}
	case '{':
		entries = []json.RawMessage{trimmed}
	default:
		return nil, dErrors.New(dErrors.CodeInvalidPayload, "payload must be an object or an array of objects")
	}

	lines := make([][]byte, 0, len(entries))
	for i, raw := range entries {
		line, err := encodeEntry(raw, name)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func encodeEntry(raw json.RawMessage, name domain.Name) ([]byte, error) {
	members, err := objectMembers(raw)
	if err != nil {
		return nil, err
	}

	value, err := marshalString(name.String())
	if err != nil {
		return nil, err
	}

	found := false
	for i := range members {
		if members[i].key != domainKey {
			continue
		}
		if err := checkEntryDomain(members[i].value, name); err != nil {
			return nil, err
		}
		members[i].value = value
		found = true
	}
	if !found {
		members = append(members, member{key: domainKey, value: value})
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range members {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := marshalString(m.key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if err := json.Compact(&buf, m.value); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInvalidJSON, "invalid json")
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// checkEntryDomain accepts an entry-level "domain" only when it is a string
// naming the same domain as the URL after normalization.
func checkEntryDomain(raw json.RawMessage, name domain.Name) error {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return dErrors.New(dErrors.CodeInvalidPayload, "entry domain must be a string")
	}
	entryName, err := domain.ParseName(s)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvalidPayload, "entry domain is invalid")
	}
	if entryName != name {
		return dErrors.New(dErrors.CodeDomainMismatch, "entry domain does not match the request domain")
	}
	return nil
}

// objectMembers splits a JSON object into ordered members. A repeated key
// keeps its first position and its last value.
func objectMembers(raw json.RawMessage) ([]member, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidJSON, "invalid json")
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, dErrors.New(dErrors.CodeInvalidPayload, "array entries must be objects")
	}

	var members []member
	index := map[string]int{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInvalidJSON, "invalid json")
		}
		key, ok := tok.(string)
		if !ok {
			return nil, dErrors.New(dErrors.CodeInvalidJSON, "invalid json")
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInvalidJSON, "invalid json")
		}
		if i, seen := index[key]; seen {
			members[i].value = value
			continue
		}
		index[key] = len(members)
		members = append(members, member{key: key, value: value})
	}
	return members, nil
}

// marshalString encodes s as a JSON string without HTML escaping, so
// non-ASCII and <>& pass through unchanged.
func marshalString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "encode string")
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
