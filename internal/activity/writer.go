package activity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Writer appends entries to the audit log. Meta is free-form: each action
// tag carries its own set of fields.
type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type Meta map[string]any

func (w Writer) Append(ctx context.Context, tx *sql.Tx, action string, meta Meta) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	at := w.Now().UTC().Format(time.RFC3339)
	if meta == nil {
		meta = Meta{}
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal activity meta: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO activity(at,action,meta_json) VALUES (?,?,?)`,
		at, action, string(data))
	return err
}
