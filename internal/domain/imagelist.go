package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// ImageList is an ordered list of image URLs stored as a JSONB column.
type ImageList []string

// Scan implements sql.Scanner.
func (l *ImageList) Scan(src interface{}) error {
	if src == nil {
		*l = nil
		return nil
	}

	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for image list: %T", src)
	}

	if len(data) == 0 {
		*l = nil
		return nil
	}

	return json.Unmarshal(data, l)
}

// Value implements driver.Valuer.
func (l ImageList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}
