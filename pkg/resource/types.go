package resource

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Scheme identifies a resource adapter kind. The set of schemes is closed
// and registered at startup.
type Scheme string

const (
	SchemeRecordStore    Scheme = "record-store"
	SchemeGraphStore     Scheme = "graph-store"
	SchemeAggregateStore Scheme = "aggregate-store"
	SchemeCacheStore     Scheme = "cache-store"
)

// Operation identifies an adapter operation
type Operation string

const (
	OpRead        Operation = "read"
	OpWrite       Operation = "write"
	OpSearch      Operation = "search"
	OpConsolidate Operation = "consolidate"
)

// Descriptor addresses one resource access. Constructed per request,
// never mutated.
type Descriptor struct {
	Scheme    Scheme
	Path      string
	Operation Operation
}

// Sentinel errors surfaced across the protocol boundary
var (
	ErrUnsupportedScheme    = errors.New("unsupported resource scheme")
	ErrUnsupportedOperation = errors.New("unsupported resource operation")
	ErrNotFound             = errors.New("resource not found")
	ErrConflict             = errors.New("resource conflict")
)

// Document is the generic record shape exchanged with adapters
type Document map[string]interface{}

// Query filters a search. Filter fields match on equality; a zero Limit
// means no limit.
type Query struct {
	Filter map[string]interface{}
	Limit  int
}

// Adapter serves one resource scheme. Implementations must be safe for
// concurrent use.
type Adapter interface {
	Scheme() Scheme
	Supports(op Operation) bool
	Read(ctx context.Context, path string) (Document, error)
	Write(ctx context.Context, path string, doc Document) error
	Search(ctx context.Context, path string, query Query) ([]Document, error)
}

// ParseURI splits a {scheme}://{path} resource URI
func ParseURI(uri string) (Scheme, string, error) {
	idx := strings.Index(uri, "://")
	if idx <= 0 {
		return "", "", fmt.Errorf("malformed resource URI %q", uri)
	}
	return Scheme(uri[:idx]), uri[idx+3:], nil
}

// URI renders the descriptor's address
func (d Descriptor) URI() string {
	return fmt.Sprintf("%s://%s", d.Scheme, d.Path)
}

// matchesFilter reports whether a document satisfies every filter field
func matchesFilter(doc Document, filter map[string]interface{}) bool {
	for k, want := range filter {
		got, ok := doc[k]
		if !ok || got != want {
			return false
		}
	}
	return true
}
