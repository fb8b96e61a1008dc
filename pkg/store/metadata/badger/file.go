package badger

import (
	"context"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/nsfs/pkg/store/metadata"
)

// GetNode returns the node attributes stored at path.
func (s *BadgerMetadataStore) GetNode(ctx context.Context, path string) (*metadata.FileAttr, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	var attr *metadata.FileAttr
	err := s.view("get", func(txn *badger.Txn) error {
		var err error
		attr, err = getNode(txn, path)
		return err
	})
	if err != nil {
		return nil, err
	}
	return attr, nil
}

// PutNode creates or updates the node at path.
//
// Creating a node writes, in one transaction:
//   - the node record
//   - a child entry at the parent's next sequence number
//   - the name → sequence index entry
//   - the incremented parent sequence counter
//
// Updating a node only rewrites its record.
func (s *BadgerMetadataStore) PutNode(ctx context.Context, path string, attr *metadata.FileAttr) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	if !metadata.IsCanonicalPath(path) {
		return metadata.NewInvalidArgumentError("path is not canonical", path)
	}
	if attr == nil {
		return metadata.NewInvalidArgumentError("attributes cannot be nil", path)
	}

	node := *attr
	if node.IsDir() {
		node.Size = 0
	}

	value, err := encodeNode(&node)
	if err != nil {
		return err
	}

	return s.update("put", func(txn *badger.Txn) error {
		// ====================================================================
		// Update in place
		// ====================================================================

		existing, err := getNode(txn, path)
		if err == nil {
			if existing.Type != node.Type {
				return metadata.NewInvalidArgumentError("cannot change node type", path)
			}
			return txn.Set(keyNode(path), value)
		}
		if !metadata.IsNotFound(err) {
			return err
		}

		// ====================================================================
		// Create: link into the parent first
		// ====================================================================

		if path != metadata.RootPath {
			if err := linkChild(txn, path, node.Type); err != nil {
				return err
			}
		}

		return txn.Set(keyNode(path), value)
	})
}

// linkChild appends path to its parent's ordered child list.
func linkChild(txn *badger.Txn, path string, fileType metadata.FileType) error {
	parent, name := metadata.SplitPath(path)

	parentAttr, err := getNode(txn, parent)
	if err != nil {
		return err
	}
	if !parentAttr.IsDir() {
		return metadata.NewNotDirectoryError(parent)
	}

	seq, _, err := getUint64(txn, keySequence(parent))
	if err != nil {
		return fmt.Errorf("failed to read sequence for %s: %w", parent, err)
	}

	dirent, err := encodeDirent(name, fileType)
	if err != nil {
		return err
	}

	if err := txn.Set(keyChild(parent, seq), dirent); err != nil {
		return err
	}
	if err := txn.Set(keyChildIndex(parent, name), encodeUint64(seq)); err != nil {
		return err
	}
	return txn.Set(keySequence(parent), encodeUint64(seq+1))
}

// DeleteNode removes the node at path and its child entry in the parent.
func (s *BadgerMetadataStore) DeleteNode(ctx context.Context, path string) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	if path == metadata.RootPath {
		return metadata.NewError(metadata.ErrBusy, "cannot remove namespace root", path)
	}

	return s.update("delete", func(txn *badger.Txn) error {
		attr, err := getNode(txn, path)
		if err != nil {
			return err
		}

		if attr.IsDir() {
			hasChildren, err := hasChildren(txn, path)
			if err != nil {
				return err
			}
			if hasChildren {
				return metadata.NewNotEmptyError(path)
			}
			if err := txn.Delete(keySequence(path)); err != nil {
				return err
			}
		}

		parent, name := metadata.SplitPath(path)
		seq, found, err := getUint64(txn, keyChildIndex(parent, name))
		if err != nil {
			return fmt.Errorf("failed to read child index for %s: %w", path, err)
		}
		if found {
			if err := txn.Delete(keyChild(parent, seq)); err != nil {
				return err
			}
			if err := txn.Delete(keyChildIndex(parent, name)); err != nil {
				return err
			}
		}

		return txn.Delete(keyNode(path))
	})
}
