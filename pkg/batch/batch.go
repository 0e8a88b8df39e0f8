// Package batch reads JSON batch documents of tree operations and replays
// them onto a tree. Documents are checked against an embedded JSON schema
// before they are decoded.
package batch

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/Sumatoshi-tech/ordtree/pkg/rbtree"
)

//go:embed schema.json
var schemaJSON []byte

// Orderings of batch keys.
const (
	OrderingString  = "string"
	OrderingNumeric = "numeric"
)

// Operation kinds.
const (
	KindInsert = "insert"
	KindDelete = "delete"
)

// Batch errors.
var (
	ErrInvalidJSON     = errors.New("batch is not valid JSON")
	ErrInvalidDocument = errors.New("batch does not match schema")
)

// Op is one tree operation.
type Op struct {
	Kind  string          `json:"op"`
	Key   json.RawMessage `json:"key"`
	Value string          `json:"value,omitempty"`
}

// Document is a decoded batch.
type Document struct {
	Ordering string `json:"ordering"`
	Ops      []Op   `json:"ops"`
}

// Outcome counts what a replay did.
type Outcome struct {
	Inserted   int `json:"inserted"   yaml:"inserted"`
	Duplicates int `json:"duplicates" yaml:"duplicates"`
	Deleted    int `json:"deleted"    yaml:"deleted"`
	Missing    int `json:"missing"    yaml:"missing"`
}

var schemaLoader = gojsonschema.NewBytesLoader(schemaJSON)

// Read decodes and validates a batch document.
func Read(r io.Reader) (*Document, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read batch: %w", err)
	}

	var generic any

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	err = dec.Decode(&generic)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidJSON, err)
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(generic))
	if err != nil {
		return nil, fmt.Errorf("schema validation: %w", err)
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, resultErr := range result.Errors() {
			msgs = append(msgs, resultErr.String())
		}

		return nil, fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(msgs, "; "))
	}

	var doc Document

	err = json.Unmarshal(raw, &doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidJSON, err)
	}

	if doc.Ordering == "" {
		doc.Ordering = OrderingString
	}

	return &doc, nil
}

// DecodeString decodes a string key.
func DecodeString(raw json.RawMessage) (string, error) {
	var key string

	err := json.Unmarshal(raw, &key)
	if err != nil {
		return "", fmt.Errorf("decode string key %s: %w", raw, err)
	}

	return key, nil
}

// DecodeInt64 decodes an integer key.
func DecodeInt64(raw json.RawMessage) (int64, error) {
	key, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("decode integer key %s: %w", raw, err)
	}

	return key, nil
}

// Replay applies ops to tree in order. Inserting an existing key keeps the
// stored value. It stops at the first key that fails to decode or insert.
func Replay[K any](ops []Op, tree *rbtree.Tree[K, string], decode func(json.RawMessage) (K, error)) (Outcome, error) {
	var outcome Outcome

	for idx, op := range ops {
		key, err := decode(op.Key)
		if err != nil {
			return outcome, fmt.Errorf("op %d: %w", idx, err)
		}

		switch op.Kind {
		case KindInsert:
			_, inserted, insertErr := tree.Insert(key, op.Value)
			if insertErr != nil {
				return outcome, fmt.Errorf("op %d: %w", idx, insertErr)
			}

			if inserted {
				outcome.Inserted++
			} else {
				outcome.Duplicates++
			}
		case KindDelete:
			if tree.Delete(key) {
				outcome.Deleted++
			} else {
				outcome.Missing++
			}
		default:
			return outcome, fmt.Errorf("op %d: %w: unknown op %q", idx, ErrInvalidDocument, op.Kind)
		}
	}

	return outcome, nil
}
