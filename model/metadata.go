package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/siherrmann/ragchat/helper"
)

// Metadata is the JSON payload stored next to a vector.
// Postgres keeps it as JSONB, SQLite as TEXT.
type Metadata map[string]interface{}

// Value implements the driver.Valuer interface for database storage
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements the sql.Scanner interface for database retrieval
func (m *Metadata) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case Metadata:
		*m = v
		return nil
	case []byte:
		return m.unmarshal(v)
	case string:
		return m.unmarshal([]byte(v))
	default:
		return helper.NewError("metadata scan", fmt.Errorf("unsupported type %T", value))
	}
}

func (m *Metadata) unmarshal(b []byte) error {
	if len(b) == 0 {
		*m = Metadata{}
		return nil
	}
	decoded := Metadata{}
	if err := json.Unmarshal(b, &decoded); err != nil {
		return helper.NewError("metadata unmarshal", err)
	}
	*m = decoded
	return nil
}

// String returns the value of key if it is a string.
func (m Metadata) String(key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}
