package repository

import "context"

// Document is a JSON-compatible record. Keys are top-level fields.
type Document map[string]any

// DocumentStore is the port for the document database.
//
// Stores are strongly consistent per document and provide no multi-document
// transactions. Update merges the given top-level keys into the stored
// document and returns domain.ErrNotFound when id does not exist.
type DocumentStore interface {
	Create(ctx context.Context, collection string, doc Document) (id string, err error)
	Update(ctx context.Context, collection, id string, partial Document) error
	Get(ctx context.Context, collection, id string) (Document, error)
}
