package authapi

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RoleList decodes either a single JSON string or an array of strings.
// null decodes to an empty list.
type RoleList []string

// UnmarshalJSON implements json.Unmarshaler.
func (r *RoleList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = RoleList{}
		return nil
	}

	switch data[0] {
	case '"':
		var one string
		if err := json.Unmarshal(data, &one); err != nil {
			return err
		}
		if one == "" {
			*r = RoleList{}
			return nil
		}
		*r = RoleList{one}
		return nil
	case '[':
		var many []string
		if err := json.Unmarshal(data, &many); err != nil {
			return err
		}
		out := make(RoleList, 0, len(many))
		for _, role := range many {
			if role != "" {
				out = append(out, role)
			}
		}
		*r = out
		return nil
	default:
		return fmt.Errorf("roles: unsupported JSON value %s", data)
	}
}
