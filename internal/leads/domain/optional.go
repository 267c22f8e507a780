package domain

import (
	"encoding/json"

	"github.com/google/uuid"
)

// OptionalUUID distinguishes an absent value from an explicit null.
// Set with a nil Value means "clear".
type OptionalUUID struct {
	Value *uuid.UUID
	Set   bool
}

func SomeUUID(id *uuid.UUID) OptionalUUID {
	return OptionalUUID{Value: id, Set: true}
}

func (o OptionalUUID) IsZero() bool {
	return !o.Set
}

func (o *OptionalUUID) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		o.Value = nil
		return nil
	}

	parsed, err := uuid.Parse(raw)
	if err != nil {
		return err
	}
	o.Value = &parsed
	return nil
}
