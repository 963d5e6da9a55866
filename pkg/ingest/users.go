package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mbras/feedpulse/pkg/models"
	"github.com/mbras/feedpulse/pkg/storage"
)

// resolveUsers partitions raw user identifiers into UUID-valued ids and
// opaque external keys, looks up existing rows, bulk-inserts the missing
// ones, and fills idByRaw with every raw identifier's resolved user id.
func resolveUsers(ctx context.Context, s *storage.Session, accepted []prepared, now time.Time, idByRaw map[string]uuid.UUID) error {
	rawUserIDs := make(map[string]bool, len(accepted))
	for _, p := range accepted {
		rawUserIDs[p.item.UserID] = true
	}

	var uuidRaws []string
	var keyRaws []string
	for raw := range rawUserIDs {
		if _, err := uuid.Parse(raw); err == nil {
			uuidRaws = append(uuidRaws, raw)
		} else {
			keyRaws = append(keyRaws, raw)
		}
	}

	ids := make([]uuid.UUID, len(uuidRaws))
	for i, raw := range uuidRaws {
		ids[i] = uuid.MustParse(raw)
	}

	existingByID, err := s.GetUsersByIDs(ctx, ids)
	if err != nil {
		return err
	}
	existingIDSet := make(map[uuid.UUID]bool, len(existingByID))
	for _, u := range existingByID {
		existingIDSet[u.ID] = true
	}
	for i, raw := range uuidRaws {
		if existingIDSet[ids[i]] {
			idByRaw[raw] = ids[i]
		}
	}

	existingByKey, err := s.GetUsersByExternalKeys(ctx, keyRaws)
	if err != nil {
		return err
	}
	existingKeySet := make(map[string]bool, len(existingByKey))
	for _, u := range existingByKey {
		if u.ExternalKey != nil {
			existingKeySet[*u.ExternalKey] = true
			idByRaw[*u.ExternalKey] = u.ID
		}
	}

	var toInsert []models.User
	for _, raw := range uuidRaws {
		id := uuid.MustParse(raw)
		if !existingIDSet[id] {
			toInsert = append(toInsert, models.User{ID: id, CreatedAt: now})
		}
	}
	for _, raw := range keyRaws {
		if !existingKeySet[raw] {
			key := raw
			toInsert = append(toInsert, models.User{ID: uuid.New(), ExternalKey: &key, CreatedAt: now})
		}
	}

	if len(toInsert) == 0 {
		return nil
	}

	if err := s.BulkInsertUsers(ctx, toInsert); err != nil {
		return err
	}

	// Re-query to pick up the server-confirmed rows: a conflict-tolerant
	// insert may have been skipped in favor of a row created concurrently
	// under a different id, so idByRaw must reflect what is actually stored.
	insertedIDs := make([]uuid.UUID, 0, len(toInsert))
	insertedKeys := make([]string, 0, len(toInsert))
	for _, u := range toInsert {
		if u.ExternalKey != nil {
			insertedKeys = append(insertedKeys, *u.ExternalKey)
		} else {
			insertedIDs = append(insertedIDs, u.ID)
		}
	}

	confirmedByID, err := s.GetUsersByIDs(ctx, insertedIDs)
	if err != nil {
		return err
	}
	confirmedIDSet := make(map[uuid.UUID]bool, len(confirmedByID))
	for _, u := range confirmedByID {
		confirmedIDSet[u.ID] = true
	}
	for i, raw := range uuidRaws {
		if confirmedIDSet[ids[i]] {
			idByRaw[raw] = ids[i]
		}
	}

	confirmedByKey, err := s.GetUsersByExternalKeys(ctx, insertedKeys)
	if err != nil {
		return err
	}
	for _, u := range confirmedByKey {
		if u.ExternalKey != nil {
			idByRaw[*u.ExternalKey] = u.ID
		}
	}
	return nil
}
