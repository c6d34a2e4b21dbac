package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/ncecere/tenant_console/internal/store"
)

var ErrRecorderUnavailable = errors.New("audit recorder not initialized")

// Inserter is the store call used to append audit rows.
type Inserter interface {
	InsertAuditEntry(ctx context.Context, arg store.InsertAuditEntryParams) (store.AuditEntry, error)
}

// Recorder appends entries to the admin audit log. Rows are never updated
// or deleted once written.
type Recorder struct {
	store Inserter
}

func NewRecorder(inserter Inserter) *Recorder {
	return &Recorder{store: inserter}
}

// Record inserts an audit entry with JSON metadata. A nil actorID records a
// system action.
func (r *Recorder) Record(ctx context.Context, actorID uuid.UUID, action, resourceType, resourceID string, metadata any) error {
	if r == nil || r.store == nil {
		return ErrRecorderUnavailable
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return errors.New("audit action required")
	}
	metaBytes := []byte("{}")
	if metadata != nil {
		data, err := json.Marshal(metadata)
		if err != nil {
			return err
		}
		metaBytes = data
	}
	params := store.InsertAuditEntryParams{
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Metadata:     metaBytes,
	}
	if actorID != uuid.Nil {
		params.ActorID = &actorID
	}
	_, err := r.store.InsertAuditEntry(ctx, params)
	return err
}
