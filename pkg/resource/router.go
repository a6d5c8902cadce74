package resource

import (
	"context"
	"fmt"

	"github.com/purplemerit/merit/internal/observability"
)

// Router maps resource schemes to adapters. The table is fixed at
// construction time; routing is a pure lookup plus capability check.
type Router struct {
	adapters map[Scheme]Adapter
}

// NewRouter creates a router over a fixed adapter set
func NewRouter(adapters ...Adapter) *Router {
	table := make(map[Scheme]Adapter, len(adapters))
	for _, a := range adapters {
		table[a.Scheme()] = a
	}
	return &Router{adapters: table}
}

// Resolve returns the adapter serving a resource URI along with the
// scheme-relative path
func (r *Router) Resolve(uri string) (Adapter, string, error) {
	scheme, path, err := ParseURI(uri)
	if err != nil {
		return nil, "", err
	}
	adapter, ok := r.adapters[scheme]
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedScheme, scheme)
	}
	return adapter, path, nil
}

// Adapter returns the adapter registered for a scheme
func (r *Router) Adapter(scheme Scheme) (Adapter, error) {
	adapter, ok := r.adapters[scheme]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, scheme)
	}
	return adapter, nil
}

// Schemes returns all registered schemes
func (r *Router) Schemes() []Scheme {
	schemes := make([]Scheme, 0, len(r.adapters))
	for s := range r.adapters {
		schemes = append(schemes, s)
	}
	return schemes
}

// Access resolves a descriptor and executes the requested operation after
// a capability check. Search descriptors must carry their query via
// AccessSearch instead.
func (r *Router) Access(ctx context.Context, desc Descriptor, doc Document) (Document, error) {
	adapter, ok := r.adapters[desc.Scheme]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, desc.Scheme)
	}
	if !adapter.Supports(desc.Operation) {
		observability.RecordResourceOp(string(desc.Scheme), string(desc.Operation), "unsupported")
		return nil, fmt.Errorf("%w: %s on %s", ErrUnsupportedOperation, desc.Operation, desc.Scheme)
	}

	var result Document
	var err error
	switch desc.Operation {
	case OpRead:
		result, err = adapter.Read(ctx, desc.Path)
	case OpWrite:
		err = adapter.Write(ctx, desc.Path, doc)
	default:
		return nil, fmt.Errorf("%w: %s via Access", ErrUnsupportedOperation, desc.Operation)
	}

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	observability.RecordResourceOp(string(desc.Scheme), string(desc.Operation), outcome)
	return result, err
}

// AccessSearch resolves a search descriptor and executes the query
func (r *Router) AccessSearch(ctx context.Context, desc Descriptor, query Query) ([]Document, error) {
	adapter, ok := r.adapters[desc.Scheme]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, desc.Scheme)
	}
	if !adapter.Supports(OpSearch) {
		observability.RecordResourceOp(string(desc.Scheme), string(OpSearch), "unsupported")
		return nil, fmt.Errorf("%w: search on %s", ErrUnsupportedOperation, desc.Scheme)
	}

	docs, err := adapter.Search(ctx, desc.Path, query)
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	observability.RecordResourceOp(string(desc.Scheme), string(OpSearch), outcome)
	return docs, err
}
