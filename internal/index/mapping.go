package index

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildMapping creates the index mapping for note documents.
// The path is the document key: stored, matched exactly, kept out of _all.
func buildMapping() *mapping.IndexMappingImpl {
	indexMapping := bleve.NewIndexMapping()

	pathMapping := bleve.NewTextFieldMapping()
	pathMapping.Analyzer = "keyword"
	pathMapping.Store = true
	pathMapping.Index = true
	pathMapping.IncludeInAll = false

	// Title, body and section share the standard analyzer and are stored
	// with term vectors so hits can be highlighted.
	textMapping := func() *mapping.FieldMapping {
		m := bleve.NewTextFieldMapping()
		m.Analyzer = "standard"
		m.Store = true
		m.Index = true
		m.IncludeTermVectors = true
		return m
	}

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt(FieldPath.Name(), pathMapping)
	docMapping.AddFieldMappingsAt(FieldTitle.Name(), textMapping())
	docMapping.AddFieldMappingsAt(FieldBody.Name(), textMapping())
	docMapping.AddFieldMappingsAt(FieldSection.Name(), textMapping())

	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

// toDocument converts a step's fields into the map bleve indexes.
func toDocument(path string, fields Fields) map[string]interface{} {
	doc := map[string]interface{}{
		FieldPath.Name(): path,
		FieldBody.Name(): fields.Body,
	}
	if fields.Title != "" {
		doc[FieldTitle.Name()] = fields.Title
	}
	if len(fields.Sections) > 0 {
		doc[FieldSection.Name()] = fields.Sections
	}
	return doc
}

// stringsField reads a stored field that may hold one value or many.
func stringsField(raw interface{}) []string {
	switch v := raw.(type) {
	case string:
		return []string{v}
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
