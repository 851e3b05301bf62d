package domain

// Document represents a document in the database
type Document map[string]interface{}

// ID returns the document's _id field, or "" when it has none.
func (d Document) ID() string {
	id, _ := d["_id"].(string)
	return id
}

// Clone returns a field-level copy of the document so callers can mutate
// the result without racing against the stored original.
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
