package core

import (
	"encoding/json"
	"log"
)

// EncodeJSON marshals v, logging instead of failing on encode errors.
func EncodeJSON(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("Failed to encode JSON: %v", err)
		return nil
	}
	return data
}

// DecodeJSON unmarshals data into v.
func DecodeJSON(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}
