package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"

	"github.com/chatloom/chatloom/internal/model"
)

// ErrThreadNotFound is returned when a thread does not exist for the
// given owner. Foreign ownership is indistinguishable from absence.
var ErrThreadNotFound = errors.New("thread not found")

// ThreadStore persists whole thread documents. Every operation takes the
// owner id; the key layout (thread:<ownerID>:<threadID>) makes it
// impossible to reach another user's thread.
type ThreadStore struct {
	store *Store
}

// NewThreadStore creates a thread store on top of the shared Store.
func NewThreadStore(s *Store) *ThreadStore {
	return &ThreadStore{store: s}
}

func threadKey(ownerID, threadID string) []byte {
	return []byte(threadPrefix + ownerID + ":" + threadID)
}

// Save writes the full thread document, inserting or replacing.
func (ts *ThreadStore) Save(thread *model.Thread) error {
	doc, err := json.Marshal(thread)
	if err != nil {
		return fmt.Errorf("marshal thread: %w", err)
	}
	if err := ts.store.set(threadKey(thread.OwnerID, thread.ThreadID), doc); err != nil {
		ts.store.logger.Error("thread save failed",
			zap.String("thread_id", thread.ThreadID),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// Get returns the thread for (ownerID, threadID), or ErrThreadNotFound.
func (ts *ThreadStore) Get(ownerID, threadID string) (*model.Thread, error) {
	doc, err := ts.store.get(threadKey(ownerID, threadID))
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrThreadNotFound
	}
	var thread model.Thread
	if err := json.Unmarshal(doc, &thread); err != nil {
		return nil, fmt.Errorf("unmarshal thread: %w", err)
	}
	return &thread, nil
}

// List returns all threads owned by ownerID, most recently updated first.
// Equal update times fall back to creation time, then id, so the order
// is deterministic.
func (ts *ThreadStore) List(ownerID string) ([]model.Thread, error) {
	prefix := []byte(threadPrefix + ownerID + ":")
	iter, err := ts.store.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixEnd(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	threads := []model.Thread{}
	for iter.First(); iter.Valid(); iter.Next() {
		var thread model.Thread
		if err := json.Unmarshal(iter.Value(), &thread); err != nil {
			return nil, fmt.Errorf("unmarshal thread %q: %w", iter.Key(), err)
		}
		threads = append(threads, thread)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}

	sort.Slice(threads, func(i, j int) bool {
		a, b := threads[i], threads[j]
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ThreadID < b.ThreadID
	})
	return threads, nil
}

// Delete removes the thread for (ownerID, threadID), or returns
// ErrThreadNotFound when no such thread exists for that owner.
func (ts *ThreadStore) Delete(ownerID, threadID string) error {
	key := threadKey(ownerID, threadID)
	doc, err := ts.store.get(key)
	if err != nil {
		return err
	}
	if doc == nil {
		return ErrThreadNotFound
	}
	return ts.store.delete(key)
}
