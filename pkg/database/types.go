package database

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// StringArray stores a []string in a text column as a JSON array. Scan also
// accepts PostgreSQL array literals ({a,"b c"}) so text[] columns created by
// older schemas still load.
type StringArray []string

// Scan implements sql.Scanner.
func (a *StringArray) Scan(value interface{}) error {
	var s string
	switch v := value.(type) {
	case nil:
		*a = nil
		return nil
	case []byte:
		s = string(v)
	case string:
		s = v
	default:
		return fmt.Errorf("StringArray: unsupported scan type %T", value)
	}

	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "["):
		return json.Unmarshal([]byte(s), (*[]string)(a))
	case strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}"):
		*a = splitPGArray(s[1 : len(s)-1])
	case s == "":
		*a = StringArray{}
	default:
		*a = StringArray{s}
	}
	return nil
}

// splitPGArray splits the body of a one-dimensional PostgreSQL array literal.
func splitPGArray(body string) StringArray {
	out := StringArray{}
	if body == "" {
		return out
	}

	var cur strings.Builder
	quoted, escaped := false, false
	for _, r := range body {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == '"':
			quoted = !quoted
		case r == ',' && !quoted:
			out = append(out, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	return append(out, cur.String())
}

// Value implements driver.Valuer.
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	b, err := json.Marshal([]string(a))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// GormDataType returns the GORM data type hint.
func (StringArray) GormDataType() string {
	return "text"
}
