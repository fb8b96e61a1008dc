package badger

import (
	"context"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/nsfs/pkg/store/metadata"
)

// ListChildren returns the children of a directory in creation order.
//
// Implementation:
// A single prefix scan over "c:<path>\x00". Keys embed a big-endian sequence
// number, so iteration order is creation order.
func (s *BadgerMetadataStore) ListChildren(ctx context.Context, path string) ([]metadata.DirEntry, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	entries := []metadata.DirEntry{}
	err := s.view("scan", func(txn *badger.Txn) error {
		attr, err := getNode(txn, path)
		if err != nil {
			return err
		}
		if !attr.IsDir() {
			return metadata.NewNotDirectoryError(path)
		}

		prefix := keyChildPrefix(path)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var (
				name     string
				fileType metadata.FileType
			)
			err := it.Item().Value(func(val []byte) error {
				var decodeErr error
				name, fileType, decodeErr = decodeDirent(val)
				return decodeErr
			})
			if err != nil {
				return err
			}

			entries = append(entries, metadata.DirEntry{
				Name: name,
				Type: fileType,
				ID:   metadata.PathToINode(metadata.JoinPath(path, name)),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// HasChildren reports whether a directory has at least one child.
func (s *BadgerMetadataStore) HasChildren(ctx context.Context, path string) (bool, error) {
	if err := s.check(ctx); err != nil {
		return false, err
	}

	var result bool
	err := s.view("scan", func(txn *badger.Txn) error {
		attr, err := getNode(txn, path)
		if err != nil {
			return err
		}
		if !attr.IsDir() {
			return metadata.NewNotDirectoryError(path)
		}

		result, err = hasChildren(txn, path)
		return err
	})
	return result, err
}

// hasChildren checks for any key under the directory's child prefix.
func hasChildren(txn *badger.Txn, path string) (bool, error) {
	prefix := keyChildPrefix(path)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false

	it := txn.NewIterator(opts)
	defer it.Close()

	it.Seek(prefix)
	return it.ValidForPrefix(prefix), nil
}
