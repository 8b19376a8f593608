package contentstore

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	badger "github.com/dgraph-io/badger/v4"
	pkgerrors "github.com/pkg/errors"
)

// Store is a local content-addressed blob store (Badger). It stands in
// for an external pinning service during development: Add returns a
// deterministic content-derived id, and the marketplace only ever
// stores and dereferences the resulting URI.
type Store struct {
	db *badger.DB
}

// URIScheme prefixes every URI the store hands out.
const URIScheme = "cas://"

var ErrNotFound = pkgerrors.New("contentstore: blob not found")

func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, pkgerrors.New("contentstore: path is required")
	}
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "contentstore: open")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CID derives the content id: hex sha256 of the blob. Identical blobs
// always share one id.
func CID(blob []byte) string {
	sum := sha256.Sum256(blob)
	return hex.EncodeToString(sum[:])
}

// URI returns the dereferenceable URI for a cid.
func URI(cid string) string { return URIScheme + cid }

// ParseURI extracts the cid from a store URI.
func ParseURI(uri string) (string, bool) {
	if !strings.HasPrefix(uri, URIScheme) {
		return "", false
	}
	cid := strings.TrimPrefix(uri, URIScheme)
	return cid, cid != ""
}

// Add stores a blob and returns its cid. Re-adding existing content is
// a no-op with the same id.
func (s *Store) Add(blob []byte) (string, error) {
	if len(blob) == 0 {
		return "", pkgerrors.New("contentstore: empty blob")
	}
	cid := CID(blob)
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(cid), blob)
	})
	if err != nil {
		return "", pkgerrors.Wrap(err, "contentstore: add")
	}
	return cid, nil
}

// Get returns the blob for a cid.
func (s *Store) Get(cid string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(cid))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, pkgerrors.Wrap(err, "contentstore: get")
	}
	return out, nil
}

// Has reports whether a cid is present without copying the blob.
func (s *Store) Has(cid string) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(cid))
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return false, nil
		}
		return false, pkgerrors.Wrap(err, "contentstore: has")
	}
	return true, nil
}
