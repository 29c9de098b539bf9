package model

// Document is the flexible, schemaless representation of a cache value inside
// the search index. Fields are accessed by their string keys; which fields
// exist depends entirely on the cached value they were mapped from.
// Example: doc["title"], doc["popularity"]
type Document map[string]interface{}

// Clone returns a shallow copy of the document. The engine stores clones so
// later mutation of a cached value cannot corrupt the index.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}
