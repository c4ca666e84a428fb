package cache

import (
	"encoding/json"
	"fmt"
)

// encode stores strings and bytes as-is and everything else as JSON, so
// both backends return the same text from Get.
func encode(value interface{}) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("cache: encode value: %w", err)
		}
		return string(data), nil
	}
}
