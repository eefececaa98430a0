package cleantxtgql

import (
	"encoding/json"
	"fmt"
)

type JSON struct {
	Data interface{}
}

// FromRaw decodes any json value.
func FromRaw(raw json.RawMessage) (JSON, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return JSON{}, fmt.Errorf("failed to decode json scalar: %w", err)
	}
	return JSON{Data: v}, nil
}

func (JSON) ImplementsGraphQLType(name string) bool {
	return name == "JSON"
}

func (a *JSON) UnmarshalGraphQL(input interface{}) error {
	a.Data = input
	return nil
}

func (a JSON) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Data)
}
