package objectstore

import (
	"context"
	"fmt"
	"sort"
)

// LatestKey returns the newest object under a prefix, by modification
// time with the key as tie-breaker. Run files embed their timestamp in
// the name, so the tie-breaker keeps the answer stable when a backend
// reports coarse timestamps.
func LatestKey(ctx context.Context, s Store, prefix string) (string, bool, error) {
	objs, err := s.List(ctx, prefix)
	if err != nil {
		return "", false, err
	}
	if len(objs) == 0 {
		return "", false, nil
	}
	best := objs[0]
	for _, o := range objs[1:] {
		if o.LastModified.After(best.LastModified) ||
			(o.LastModified.Equal(best.LastModified) && o.Key > best.Key) {
			best = o
		}
	}
	return best.Key, true, nil
}

// Prune deletes everything under a prefix beyond the keep newest
// objects and returns the deleted keys. keep <= 0 disables pruning.
func Prune(ctx context.Context, s Store, prefix string, keep int) ([]string, error) {
	if keep <= 0 {
		return nil, nil
	}
	objs, err := s.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("prune %s: %w", prefix, err)
	}
	if len(objs) <= keep {
		return nil, nil
	}

	// Newest first.
	sort.Slice(objs, func(i, j int) bool {
		if !objs[i].LastModified.Equal(objs[j].LastModified) {
			return objs[i].LastModified.After(objs[j].LastModified)
		}
		return objs[i].Key > objs[j].Key
	})

	var deleted []string
	for _, o := range objs[keep:] {
		if err := s.Delete(ctx, o.Key); err != nil {
			return deleted, fmt.Errorf("prune %s: %w", prefix, err)
		}
		deleted = append(deleted, o.Key)
	}
	return deleted, nil
}
