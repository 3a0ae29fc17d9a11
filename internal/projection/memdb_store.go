package projection

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-memdb"
)

const attrTable = "attributes"

// MemDBStore is an in-memory Store backed by hashicorp/go-memdb, with
// radix-tree indexes on the blocked flag and the blocked activity name.
type MemDBStore struct {
	db *memdb.MemDB
}

var _ Store = (*MemDBStore)(nil)

// NewMemDBStore creates an empty MemDBStore.
func NewMemDBStore() (*MemDBStore, error) {
	schema := &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			attrTable: {
				Name: attrTable,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "InstanceID"},
					},
					"blocked": {
						Name:    "blocked",
						Indexer: &memdb.BoolFieldIndex{Field: "IsBlocked"},
					},
					"activity": {
						Name:         "activity",
						AllowMissing: true,
						Indexer:      &memdb.StringFieldIndex{Field: "BlockedActivity"},
					},
				},
			},
		},
	}

	db, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, fmt.Errorf("create memdb: %w", err)
	}
	return &MemDBStore{db: db}, nil
}

func (s *MemDBStore) Upsert(ctx context.Context, attrs Attributes) error {
	txn := s.db.Txn(true)
	// memdb keeps the inserted object; store a private copy.
	cp := attrs
	if err := txn.Insert(attrTable, &cp); err != nil {
		txn.Abort()
		return fmt.Errorf("upsert attributes: %w", err)
	}
	txn.Commit()
	return nil
}

func (s *MemDBStore) Get(ctx context.Context, instanceID string) (Attributes, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(attrTable, "id", instanceID)
	if err != nil {
		return Attributes{}, err
	}
	if raw == nil {
		return Attributes{}, ErrNotFound
	}
	return *raw.(*Attributes), nil
}

func (s *MemDBStore) List(ctx context.Context, filter Filter) ([]Attributes, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	var (
		it  memdb.ResultIterator
		err error
	)
	switch {
	case filter.BlockedActivity != "":
		it, err = txn.Get(attrTable, "activity", filter.BlockedActivity)
	case filter.Blocked != nil:
		it, err = txn.Get(attrTable, "blocked", *filter.Blocked)
	default:
		it, err = txn.Get(attrTable, "id")
	}
	if err != nil {
		return nil, err
	}

	var out []Attributes
	for raw := it.Next(); raw != nil; raw = it.Next() {
		attrs := *raw.(*Attributes)
		if filter.Blocked != nil && attrs.IsBlocked != *filter.Blocked {
			continue
		}
		out = append(out, attrs)
	}
	return out, nil
}
