package stringutil

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// ToJSONString marshals the value into an indented JSON string.
func ToJSONString(v any) (string, error) {
	bytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", errors.WithStack(err)
	}
	return string(bytes), nil
}
