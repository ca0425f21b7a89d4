package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/laraflow/laraflow/internal/model"
	"github.com/laraflow/laraflow/internal/repo"
)

// HasNotification reports whether a record with the given key exists.
func (s *Store) HasNotification(ctx context.Context, key model.NotificationKey) (bool, error) {
	var n int
	err := s.queryRow(ctx,
		`SELECT COUNT(*) FROM notifications
		WHERE recipient_id = ? AND kind = ? AND task_id = ? AND offset_hours = ?`,
		key.RecipientID, string(key.Kind), key.TaskID, key.OffsetHours).Scan(&n)
	return n > 0, err
}

// RecordNotification inserts a record. The unique key constraint makes a
// duplicate insert a no-op, reported as repo.ErrConflict.
func (s *Store) RecordNotification(ctx context.Context, rec *model.NotificationRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now()
	}
	data, err := json.Marshal(rec.Data)
	if err != nil {
		return err
	}

	res, err := s.exec(ctx,
		`INSERT INTO notifications
			(id, recipient_id, kind, task_id, offset_hours, title, message, data, created_at, read_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (recipient_id, kind, task_id, offset_hours) DO NOTHING`,
		rec.ID, rec.RecipientID, string(rec.Kind), rec.TaskID, rec.OffsetHours,
		rec.Title, rec.Message, string(data), toUnix(rec.CreatedAt), toNullUnix(rec.ReadAt))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repo.ErrConflict
	}
	rec.Key = model.GenerateNotificationKey(rec.ID)
	return nil
}

// ListNotifications returns a recipient's records, newest first.
func (s *Store) ListNotifications(ctx context.Context, recipientID string, unreadOnly bool) ([]*model.NotificationRecord, error) {
	q := `SELECT id, recipient_id, kind, task_id, offset_hours, title, message, data, created_at, read_at
		FROM notifications WHERE recipient_id = ?`
	if unreadOnly {
		q += ` AND read_at IS NULL`
	}
	q += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.query(ctx, q, recipientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*model.NotificationRecord
	for rows.Next() {
		var (
			rec     model.NotificationRecord
			kind    string
			data    string
			created int64
			read    sql.NullInt64
		)
		err := rows.Scan(&rec.ID, &rec.RecipientID, &kind, &rec.TaskID, &rec.OffsetHours,
			&rec.Title, &rec.Message, &data, &created, &read)
		if err != nil {
			return nil, err
		}
		rec.Kind = model.NotificationType(kind)
		if data != "" {
			if err := json.Unmarshal([]byte(data), &rec.Data); err != nil {
				return nil, err
			}
		}
		rec.CreatedAt = fromUnix(created)
		rec.ReadAt = fromNullUnix(read)
		rec.Key = model.GenerateNotificationKey(rec.ID)
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// MarkNotificationRead sets the read time of a record if it is unread.
func (s *Store) MarkNotificationRead(ctx context.Context, id string, at time.Time) error {
	res, err := s.exec(ctx,
		`UPDATE notifications SET read_at = COALESCE(read_at, ?) WHERE id = ?`,
		toUnix(at), id)
	if err != nil {
		return err
	}
	return expectOne(res)
}
