package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// LoadCookies reads a cookie dump copied from the browser developer tools.
//
// Two layouts are accepted. The plain object maps names to values:
//
//	{"PHPSESSID5": "...", "gc_visitor_42486": "{\"id\":...}"}
//
// The list layout is what cookie export extensions produce:
//
//	[{"name": "PHPSESSID5", "value": "..."}]
//
// Numbers and booleans are converted to their text form. Anything else is
// rejected with ErrInvalidCookiesFile.
func LoadCookies(path string) (map[string]string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided cookie path is intentional
	if err != nil {
		return nil, err
	}
	cookies, err := ParseCookies(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cookies, nil
}

// ParseCookies decodes a cookie dump. See LoadCookies for the accepted layouts.
func ParseCookies(data []byte) (map[string]string, error) {
	var object map[string]any
	if err := json.Unmarshal(data, &object); err == nil {
		cookies := make(map[string]string, len(object))
		for name, raw := range object {
			value, ok := scalarString(raw)
			if !ok {
				return nil, fmt.Errorf("%w: cookie %q has a non-scalar value", ErrInvalidCookiesFile, name)
			}
			cookies[name] = value
		}
		return cookies, nil
	}

	var list []struct {
		Name  string `json:"name"`
		Value any    `json:"value"`
	}
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, ErrInvalidCookiesFile
	}
	cookies := make(map[string]string, len(list))
	for _, c := range list {
		if c.Name == "" {
			return nil, fmt.Errorf("%w: cookie without a name", ErrInvalidCookiesFile)
		}
		value, ok := scalarString(c.Value)
		if !ok {
			return nil, fmt.Errorf("%w: cookie %q has a non-scalar value", ErrInvalidCookiesFile, c.Name)
		}
		cookies[c.Name] = value
	}
	return cookies, nil
}

func scalarString(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(val), true
	case nil:
		return "", true
	default:
		return "", false
	}
}
