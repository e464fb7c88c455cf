package store

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Encode converts v into a Document using its JSON field names.
func Encode(v interface{}) (Document, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %v", err)
	}
	doc := Document{}
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %v", err)
	}
	return doc, nil
}

// Decode fills v from doc.
func Decode(doc Document, v interface{}) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %v", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("failed to decode document: %v", err)
	}
	return nil
}

// normalize returns a deep copy of doc holding only JSON values.
func normalize(doc Document) (Document, error) {
	if doc == nil {
		return Document{}, nil
	}
	return Encode(doc)
}

// mergeDocuments merges src into a copy of dst. Maps on both sides are merged recursively.
func mergeDocuments(dst, src Document) Document {
	out := make(Document, len(dst)+len(src))
	for k, v := range dst {
		out[k] = v
	}
	for k, v := range src {
		srcMap, srcIsMap := asMap(v)
		dstMap, dstIsMap := asMap(out[k])
		if srcIsMap && dstIsMap {
			out[k] = map[string]interface{}(mergeDocuments(dstMap, srcMap))
			continue
		}
		out[k] = v
	}
	return out
}

func asMap(v interface{}) (Document, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return Document(m), true
	case Document:
		return m, true
	default:
		return nil, false
	}
}

func matches(doc Document, filter Filter) bool {
	v, ok := doc[filter.Field].(string)
	return ok && v == filter.Value
}

// sortByCreation orders snapshots by their createdAt field, then by id.
func sortByCreation(snaps []Snapshot) {
	sort.SliceStable(snaps, func(i, j int) bool {
		ci, cj := numberField(snaps[i].Data, "createdAt"), numberField(snaps[j].Data, "createdAt")
		if ci != cj {
			return ci < cj
		}
		return snaps[i].ID < snaps[j].ID
	})
}

func numberField(doc Document, field string) float64 {
	switch n := doc[field].(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	default:
		return 0
	}
}
