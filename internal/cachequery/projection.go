package cachequery

import (
	"github.com/cachegrid/query/services"
)

// ProjectionConverter translates the caller's projection field list into what
// the engine understands and converts each hit's projection row back. The
// engine never sees cache keys or values: both pseudo-fields are requested as
// the document identifier and resolved on the way back.
type ProjectionConverter struct {
	fields       []string
	engineFields []string
	keys         services.KeyTransformer
	needsValue   bool
}

// NewProjectionConverter builds a converter for the given caller-side fields.
func NewProjectionConverter(fields []string, keys services.KeyTransformer) *ProjectionConverter {
	pc := &ProjectionConverter{
		fields:       fields,
		engineFields: make([]string, len(fields)),
		keys:         keys,
	}
	for i, field := range fields {
		switch field {
		case services.ProjectionKey:
			pc.engineFields[i] = services.ProjectionDocumentID
		case services.ProjectionValue:
			pc.engineFields[i] = services.ProjectionDocumentID
			pc.needsValue = true
		default:
			pc.engineFields[i] = field
		}
	}
	return pc
}

// EngineFields returns the field list to hand to the engine. It maps 1:1 to
// the caller's fields, so converted rows keep the caller's column order.
func (pc *ProjectionConverter) EngineFields() []string {
	return pc.engineFields
}

// NeedsValue reports whether the projection includes the cache value
// pseudo-field, which requires a cache read per hit.
func (pc *ProjectionConverter) NeedsValue() bool {
	return pc.needsValue
}

// ConvertRow turns an engine projection row back into the caller's row:
// the key pseudo-field becomes the decoded cache key, the value pseudo-field
// the already-loaded cache entry.
func (pc *ProjectionConverter) ConvertRow(info services.EntityInfo, entry interface{}) ([]interface{}, error) {
	row := make([]interface{}, len(pc.fields))
	for i, field := range pc.fields {
		switch field {
		case services.ProjectionKey:
			key, err := pc.keys.StringToKey(info.DocumentID)
			if err != nil {
				return nil, err
			}
			row[i] = key
		case services.ProjectionValue:
			row[i] = entry
		default:
			row[i] = info.Projection[i]
		}
	}
	return row, nil
}
