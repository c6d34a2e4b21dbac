package audit

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/ncecere/tenant_console/internal/authz"
	"github.com/ncecere/tenant_console/internal/store"
)

// MaxEntries caps every audit page.
const MaxEntries = 100

// Authorizer is the admin gate run before any audit query.
type Authorizer interface {
	Authorize(ctx context.Context, token string) (*authz.AdminAccess, error)
}

// FailureCounter counts store failures answered with an empty page.
type FailureCounter interface {
	RecordAuditReadFailure()
}

// Entry is the wire form of one audit row.
type Entry struct {
	ID           string          `json:"id"`
	ActorID      *string         `json:"actor_id"`
	Action       string          `json:"action"`
	ResourceType string          `json:"resource_type"`
	ResourceID   string          `json:"resource_id"`
	Metadata     json.RawMessage `json:"metadata"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Page is the audit response body. Entries is never nil.
type Page struct {
	Entries []Entry `json:"entries"`
}

func emptyPage() Page {
	return Page{Entries: []Entry{}}
}

type ReaderOptions struct {
	Guard Authorizer
	// SwallowStoreErrors answers store failures with an empty page instead
	// of a 500 denial.
	SwallowStoreErrors bool
	Limit              int32
	Metrics            FailureCounter
	Logger             *zap.Logger
}

// Reader serves the most recent admin audit entries.
type Reader struct {
	guard   Authorizer
	swallow bool
	limit   int32
	metrics FailureCounter
	logger  *zap.Logger
}

func NewReader(opts ReaderOptions) *Reader {
	limit := opts.Limit
	if limit <= 0 || limit > MaxEntries {
		limit = MaxEntries
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{
		guard:   opts.Guard,
		swallow: opts.SwallowStoreErrors,
		limit:   limit,
		metrics: opts.Metrics,
		logger:  logger,
	}
}

// Recent authorizes token and returns the newest entries first. A guard
// denial is returned unchanged and no query is issued.
func (r *Reader) Recent(ctx context.Context, token string) (Page, error) {
	if r == nil || r.guard == nil {
		return Page{}, authz.ServerError()
	}
	access, err := r.guard.Authorize(ctx, token)
	if err != nil {
		return Page{}, err
	}
	if access == nil || access.Store == nil {
		return Page{}, authz.ServerError()
	}

	rows, err := access.Store.ListAuditEntries(ctx, r.limit)
	if err != nil {
		r.logger.Error("audit log read failed",
			zap.String("actor_id", access.UserID.String()),
			zap.Bool("swallowed", r.swallow),
			zap.Error(err),
		)
		if !r.swallow {
			return Page{}, authz.ServerError()
		}
		if r.metrics != nil {
			r.metrics.RecordAuditReadFailure()
		}
		return emptyPage(), nil
	}

	return NewPage(rows, int(r.limit)), nil
}

// NewPage orders rows newest first, keeps at most limit of them and fills in
// empty metadata.
func NewPage(rows []store.AuditEntry, limit int) Page {
	sorted := make([]store.AuditEntry, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}

	page := Page{Entries: make([]Entry, 0, len(sorted))}
	for _, row := range sorted {
		entry := Entry{
			ID:           row.ID.String(),
			Action:       row.Action,
			ResourceType: row.ResourceType,
			ResourceID:   row.ResourceID,
			Metadata:     row.Metadata,
			CreatedAt:    row.CreatedAt,
		}
		if len(entry.Metadata) == 0 {
			entry.Metadata = json.RawMessage(`{}`)
		}
		if row.ActorID != nil {
			id := row.ActorID.String()
			entry.ActorID = &id
		}
		page.Entries = append(page.Entries, entry)
	}
	return page
}
