package harness

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/roach88/docsql/internal/doc"
)

// isAbsent reports whether a node field was left out of the YAML.
func isAbsent(n *yaml.Node) bool {
	return n.Kind == 0
}

// nodeValue converts a YAML node to a document value.
//
// Mappings become doc.D so key order is preserved at every level. An absent
// node or an explicit null becomes nil.
func nodeValue(n *yaml.Node) (any, error) {
	switch n.Kind {
	case 0:
		return nil, nil
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return nodeValue(n.Content[0])
	case yaml.AliasNode:
		return nodeValue(n.Alias)
	case yaml.MappingNode:
		d := make(doc.D, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i]
			if key.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: mapping keys must be strings", key.Line)
			}
			val, err := nodeValue(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			d = append(d, doc.E{Key: key.Value, Value: val})
		}
		return d, nil
	case yaml.SequenceNode:
		list := make([]any, len(n.Content))
		for i, item := range n.Content {
			val, err := nodeValue(item)
			if err != nil {
				return nil, err
			}
			list[i] = val
		}
		return list, nil
	case yaml.ScalarNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("line %d: unsupported YAML node kind %d", n.Line, n.Kind)
	}
}

// nodeDocument converts a node that must be a mapping (or absent).
func nodeDocument(n *yaml.Node) (doc.D, error) {
	v, err := nodeValue(n)
	if err != nil || v == nil {
		return nil, err
	}
	d, ok := v.(doc.D)
	if !ok {
		return nil, fmt.Errorf("line %d: expected a mapping, got %T", n.Line, v)
	}
	return d, nil
}

// nodeDocuments converts a node that must be a sequence of mappings.
func nodeDocuments(n *yaml.Node) ([]doc.M, error) {
	v, err := nodeValue(n)
	if err != nil || v == nil {
		return nil, err
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("line %d: expected a list of documents, got %T", n.Line, v)
	}

	docs := make([]doc.M, len(list))
	for i, item := range list {
		m, err := normalize(item)
		if err != nil {
			return nil, fmt.Errorf("docs[%d]: %w", i, err)
		}
		docs[i] = m
	}
	return docs, nil
}

// normalize round-trips a document through its stored JSON form so it
// compares equal to documents read back from the table: integers become
// int64 and nested mappings become doc.M.
func normalize(v any) (doc.M, error) {
	text, err := doc.MarshalValue(v)
	if err != nil {
		return nil, err
	}
	return doc.Decode(text)
}
