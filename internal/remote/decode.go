package remote

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Envelope is a decoded list response.
type Envelope struct {
	Rows     []map[string]any
	Count    int
	HasCount bool
}

// DecodeRows extracts the row list from a list response body.
//
// The API is not consistent about where rows live. The lookup order is
// "data", "results", then each label (e.g. "Loans", "Session Tracking"),
// then a bare top-level array. A body that parses but has none of these
// yields an empty Envelope rather than an error.
func DecodeRows(body []byte, labels ...string) (Envelope, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return Envelope{Rows: []map[string]any{}}, nil
	}

	var root any
	if err := decodeJSON(trimmed, &root); err != nil {
		return Envelope{}, &APIError{Class: ErrorClassDecode, Message: "invalid json body", Err: err}
	}

	switch v := root.(type) {
	case []any:
		return Envelope{Rows: objects(v)}, nil
	case map[string]any:
		env := Envelope{Rows: []map[string]any{}}
		if n, ok := intValue(v["count"]); ok {
			env.Count, env.HasCount = n, true
		} else if n, ok := intValue(v["total"]); ok {
			env.Count, env.HasCount = n, true
		}
		keys := append([]string{"data", "results"}, labels...)
		for _, key := range keys {
			list, ok := v[key].([]any)
			if !ok {
				continue
			}
			env.Rows = objects(list)
			return env, nil
		}
		return env, nil
	}
	return Envelope{Rows: []map[string]any{}}, nil
}

// DecodeRow extracts a single record from a detail response body, which is
// either the object itself or an object wrapped in "data".
func DecodeRow(body []byte) (map[string]any, error) {
	var root map[string]any
	if err := decodeJSON(bytes.TrimSpace(body), &root); err != nil {
		return nil, &APIError{Class: ErrorClassDecode, Message: "invalid json body", Err: err}
	}
	if inner, ok := root["data"].(map[string]any); ok {
		return inner, nil
	}
	if root == nil {
		root = map[string]any{}
	}
	return root, nil
}

// DecodeToken finds the bearer token in a login response.
func DecodeToken(body []byte) string {
	var root map[string]any
	if err := json.Unmarshal(body, &root); err != nil {
		return ""
	}
	if inner, ok := root["data"].(map[string]any); ok {
		root = inner
	}
	for _, key := range []string{"token", "access", "access_token"} {
		if s, ok := root[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// decodeJSON keeps numbers as json.Number so IDs and amounts survive intact.
func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

func objects(list []any) []map[string]any {
	rows := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if obj, ok := item.(map[string]any); ok {
			rows = append(rows, obj)
		}
	}
	return rows
}

func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := strconv.Atoi(n.String())
		return i, err == nil
	case float64:
		return int(n), true
	}
	return 0, false
}
