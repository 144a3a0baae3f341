// Package remote defines the document-store primitives the expense store is
// built on, plus helpers shared by the concrete backends.
package remote

import (
	"context"
	"errors"
)

// Collection is the outbound port to a document-oriented remote store.
// Every implementation guarantees single-document atomicity per write.
type Collection interface {
	// Insert writes doc under a freshly generated id and returns it.
	Insert(ctx context.Context, collection string, doc Document) (id string, err error)

	// Get returns the document stored under id or ErrNotFound.
	Get(ctx context.Context, collection, id string) (Document, error)

	// Update merges patch into the stored document; ErrNotFound when absent.
	Update(ctx context.Context, collection, id string, patch Document) error

	// Delete removes the document. Deleting a missing document is not an error.
	Delete(ctx context.Context, collection, id string) error

	// Query returns the documents matching q, ordered as q requests.
	Query(ctx context.Context, collection string, q Query) ([]Snapshot, error)
}

var (
	ErrNotFound         = errors.New("document not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidQuery     = errors.New("invalid query")
)

type (
	// Document is the field map of a stored record, without its id.
	Document map[string]any

	// Snapshot is a document read back together with its id.
	Snapshot struct {
		ID   string   `json:"id"`
		Data Document `json:"data"`
	}
)

// Clone returns a shallow copy of d.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Merge returns a copy of d with every field of patch written over it.
func (d Document) Merge(patch Document) Document {
	out := d.Clone()
	for k, v := range patch {
		out[k] = v
	}
	return out
}
