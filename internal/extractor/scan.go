package extractor

import "encoding/json"

// textKeys are the JSON object keys deep-scanning parsers treat as
// candidate prompt text when a format nests its payload in
// unpredictable wrapper objects (SignalR envelopes, socket.io frames,
// GraphQL variables).
var textKeys = map[string]bool{
	"text": true, "content": true, "message": true, "prompt": true,
	"query": true, "value": true, "input": true,
}

// deepScanText walks an arbitrary decoded JSON value and collects every
// string found under a key in textKeys, skipping strings shorter than
// minLen (boilerplate like role labels and empty placeholders). Array
// elements are visited in order; the keys of one object are visited in
// Go map order, which is not the document order.
func deepScanText(v interface{}, minLen int) []string {
	var out []string
	var walk func(v interface{}, underTextKey bool)
	walk = func(v interface{}, underTextKey bool) {
		switch t := v.(type) {
		case map[string]interface{}:
			for k, val := range t {
				_, isTextKey := textKeys[lower(k)]
				if s, ok := val.(string); ok && isTextKey && len(s) >= minLen {
					out = append(out, s)
					continue
				}
				walk(val, isTextKey)
			}
		case []interface{}:
			for _, item := range t {
				walk(item, underTextKey)
			}
		case string:
			if underTextKey && len(t) >= minLen {
				out = append(out, t)
			}
		}
	}
	walk(v, false)
	return out
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 32
		}
	}
	return string(b)
}

// decodeAny unmarshals body into a generic interface{} tree for
// deep-scanning formats that don't have a fixed schema.
func decodeAny(body []byte) (interface{}, error) {
	var v interface{}
	err := json.Unmarshal(body, &v)
	return v, err
}
