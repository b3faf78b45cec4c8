package catalog

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONObject is a JSONB object column
type JSONObject map[string]interface{}

// Value implements driver.Valuer
func (j JSONObject) Value() (driver.Value, error) {
	if j == nil {
		return []byte(`{}`), nil
	}
	return json.Marshal(map[string]interface{}(j))
}

// Scan implements sql.Scanner
func (j *JSONObject) Scan(src interface{}) error {
	data, err := jsonBytes(src)
	if err != nil {
		return err
	}
	if data == nil {
		*j = JSONObject{}
		return nil
	}
	m := map[string]interface{}{}
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("failed to decode json object: %w", err)
	}
	*j = m
	return nil
}

// JSONList is a JSONB array column
type JSONList []interface{}

// Value implements driver.Valuer
func (j JSONList) Value() (driver.Value, error) {
	if j == nil {
		return []byte(`[]`), nil
	}
	return json.Marshal([]interface{}(j))
}

// Scan implements sql.Scanner
func (j *JSONList) Scan(src interface{}) error {
	data, err := jsonBytes(src)
	if err != nil {
		return err
	}
	if data == nil {
		*j = JSONList{}
		return nil
	}
	l := []interface{}{}
	if err := json.Unmarshal(data, &l); err != nil {
		return fmt.Errorf("failed to decode json list: %w", err)
	}
	*j = l
	return nil
}

func jsonBytes(src interface{}) ([]byte, error) {
	switch v := src.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported json column type %T", src)
	}
}
