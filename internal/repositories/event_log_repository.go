package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	intconfig "transitbook/internal/config"
	intdb "transitbook/internal/db"
	"transitbook/internal/domain/models"
	"transitbook/internal/events"
)

const eventLogTable = "store_events"

// EventRecord is one persisted bus event.
type EventRecord struct {
	ID        int64           `json:"id"`
	Channel   string          `json:"channel"`
	Kind      events.Kind     `json:"kind"`
	EntityID  string          `json:"entity_id"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// EventLogRepository keeps an append-only audit of store events in MySQL.
type EventLogRepository struct {
	DB *sql.DB
}

func (r EventLogRepository) db() *sql.DB {
	if r.DB != nil {
		return r.DB
	}
	return intconfig.DB
}

func (r EventLogRepository) EnsureTable(ctx context.Context) error {
	db := r.db()
	if db == nil {
		return fmt.Errorf("db not available")
	}
	if intdb.HasTable(db, eventLogTable) {
		// tables created before entity ids were tracked lack the column
		if intdb.HasColumn(db, eventLogTable, "entity_id") {
			return nil
		}
		_, err := db.ExecContext(ctx, `ALTER TABLE store_events ADD COLUMN entity_id VARCHAR(64) NULL AFTER kind`)
		return err
	}
	ddl := `
CREATE TABLE IF NOT EXISTS store_events (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	channel VARCHAR(191) NOT NULL,
	kind VARCHAR(16) NOT NULL,
	entity_id VARCHAR(64) NULL,
	payload JSON NOT NULL,
	created_at TIMESTAMP(6) DEFAULT CURRENT_TIMESTAMP(6),
	KEY idx_channel (channel, id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;
`
	_, err := db.ExecContext(ctx, ddl)
	return err
}

func (r EventLogRepository) Append(ctx context.Context, channel string, ev events.Event) (int64, error) {
	db := r.db()
	if db == nil {
		return 0, fmt.Errorf("db not available")
	}
	payload, err := json.Marshal(ev.Entity)
	if err != nil {
		return 0, fmt.Errorf("encode entity: %w", err)
	}
	res, err := db.ExecContext(ctx,
		`INSERT INTO store_events (channel, kind, entity_id, payload) VALUES (?, ?, ?, ?)`,
		channel, string(ev.Kind), intdb.NullIfEmpty(EntityID(ev.Entity)), payload,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListByChannel returns the newest limit records for channel, newest first.
func (r EventLogRepository) ListByChannel(ctx context.Context, channel string, limit int) ([]EventRecord, error) {
	db := r.db()
	if db == nil || !intdb.HasTable(db, eventLogTable) {
		return []EventRecord{}, nil
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, channel, kind, entity_id, payload, created_at
		FROM store_events
		WHERE channel = ?
		ORDER BY id DESC
		LIMIT ?
	`, channel, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []EventRecord{}
	for rows.Next() {
		var (
			rec      EventRecord
			kind     string
			entityID sql.NullString
			payload  []byte
		)
		if err := rows.Scan(&rec.ID, &rec.Channel, &kind, &entityID, &payload, &rec.CreatedAt); err != nil {
			return out, err
		}
		rec.Kind = events.Kind(kind)
		rec.EntityID = entityID.String
		rec.Payload = json.RawMessage(payload)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// EntityID extracts the identifier of a store entity carried by an event.
// Events that crossed Redis carry the entity as raw JSON.
func EntityID(entity any) string {
	switch e := entity.(type) {
	case json.RawMessage:
		var ref struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(e, &ref); err != nil {
			return ""
		}
		return ref.ID
	case models.Booking:
		return e.ID
	case models.Activity:
		return e.ID
	case models.Transaction:
		return e.ID
	case models.Profile:
		return e.ID
	default:
		return ""
	}
}
