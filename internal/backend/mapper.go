package backend

import (
	"encoding/json"
	"fmt"

	"github.com/cachegrid/query/model"
)

// DocumentMapper converts cache values into their indexable representation.
type DocumentMapper interface {
	ToDocument(value interface{}) (model.Document, error)
}

// DefaultMapper handles the common value shapes: documents and generic maps
// pass through, structs are flattened via their JSON encoding, and scalar
// values are wrapped under a single "value" field.
type DefaultMapper struct{}

func (DefaultMapper) ToDocument(value interface{}) (model.Document, error) {
	switch v := value.(type) {
	case model.Document:
		return v.Clone(), nil
	case map[string]interface{}:
		return model.Document(v).Clone(), nil
	case nil:
		return nil, fmt.Errorf("cannot index nil value")
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("value of type %T is not indexable: %w", value, err)
	}
	doc := model.Document{}
	if err := json.Unmarshal(encoded, &doc); err != nil {
		// Not a JSON object (scalar, array); index it as a single field.
		return model.Document{"value": value}, nil
	}
	return doc, nil
}
