package memory

import (
	"math"
	"sort"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/shikigami/pkg/domain/types"
	"github.com/m-mizutani/shikigami/pkg/domain/types/apperr"
)

// DefaultMinImportance is the floor used when building prompt context
const DefaultMinImportance = 0.3

// Scope narrows memories to a campaign and/or artist. Empty fields are part
// of the identity, so the zero Scope is the agent-global scope.
type Scope struct {
	CampaignID string `json:"campaign_id,omitempty" firestore:"campaign_id"`
	ArtistName string `json:"artist_name,omitempty" firestore:"artist_name"`
}

// Record is one remembered fact
type Record struct {
	ID             types.MemoryID `json:"id" firestore:"id"`
	AgentID        string         `json:"agent_id" firestore:"agent_id"`
	Scope          Scope          `json:"scope" firestore:"scope"`
	MemoryType     string         `json:"memory_type" firestore:"memory_type"`
	Key            string         `json:"key" firestore:"key"`
	Value          any            `json:"value" firestore:"value"`
	Importance     float64        `json:"importance" firestore:"importance"`
	AccessCount    int            `json:"access_count" firestore:"access_count"`
	LastAccessedAt time.Time      `json:"last_accessed_at" firestore:"last_accessed_at"`
	CreatedAt      time.Time      `json:"created_at" firestore:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" firestore:"updated_at"`
	ExpiresAt      *time.Time     `json:"expires_at,omitempty" firestore:"expires_at"`
}

// Copy returns a shallow copy with its own ExpiresAt
func (r *Record) Copy() *Record {
	c := *r
	if r.ExpiresAt != nil {
		t := *r.ExpiresAt
		c.ExpiresAt = &t
	}
	return &c
}

// IsExpired reports whether the record is past its expiry at now
func (r *Record) IsExpired(now time.Time) bool {
	return r.ExpiresAt != nil && !r.ExpiresAt.After(now)
}

// Touch records one read access
func (r *Record) Touch(now time.Time) {
	r.AccessCount++
	r.LastAccessedAt = now
}

// UpsertRequest is the input of a memory write
type UpsertRequest struct {
	AgentID    string
	Scope      Scope
	MemoryType string
	Key        string
	Value      any
	Importance float64
	// TTL is the lifetime from now. Zero means the record never expires.
	TTL time.Duration
}

// Validate checks the request
func (r *UpsertRequest) Validate() error {
	if r.AgentID == "" {
		return goerr.New("agent ID is required", goerr.T(apperr.ErrTagValidation))
	}
	if r.Key == "" {
		return goerr.New("memory key is required", goerr.T(apperr.ErrTagValidation),
			goerr.TV(apperr.AgentIDKey, r.AgentID))
	}
	if r.MemoryType == "" {
		return goerr.New("memory type is required", goerr.T(apperr.ErrTagValidation),
			goerr.TV(apperr.AgentIDKey, r.AgentID), goerr.TV(apperr.MemoryKeyKey, r.Key))
	}
	if math.IsNaN(r.Importance) {
		return goerr.New("importance is not a number", goerr.T(apperr.ErrTagValidation),
			goerr.TV(apperr.AgentIDKey, r.AgentID), goerr.TV(apperr.MemoryKeyKey, r.Key))
	}
	return nil
}

// ClampImportance bounds importance into [0,1]
func ClampImportance(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// NewRecord builds a fresh record from a validated request
func NewRecord(id types.MemoryID, req *UpsertRequest, now time.Time) *Record {
	rec := &Record{
		ID:             id,
		AgentID:        req.AgentID,
		Scope:          req.Scope,
		MemoryType:     req.MemoryType,
		Key:            req.Key,
		Value:          req.Value,
		Importance:     ClampImportance(req.Importance),
		LastAccessedAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if req.TTL != 0 {
		expiresAt := now.Add(req.TTL)
		rec.ExpiresAt = &expiresAt
	}
	return rec
}

// Replace overwrites the content of an existing record with rec while keeping
// its identity and creation time. The access count grows by one.
func (r *Record) Replace(rec *Record) *Record {
	merged := rec.Copy()
	merged.ID = r.ID
	merged.CreatedAt = r.CreatedAt
	merged.AccessCount = r.AccessCount + 1
	return merged
}

// Query filters memory reads
type Query struct {
	AgentID string
	// Scope nil matches every scope, otherwise exact match
	Scope         *Scope
	MemoryTypes   []string
	Keys          []string
	MinImportance float64
	Limit         int
}

// Match reports whether rec passes every filter of the query except Limit
func (q *Query) Match(rec *Record, now time.Time) bool {
	if rec.AgentID != q.AgentID || rec.IsExpired(now) {
		return false
	}
	if q.Scope != nil && rec.Scope != *q.Scope {
		return false
	}
	if len(q.MemoryTypes) > 0 && !contains(q.MemoryTypes, rec.MemoryType) {
		return false
	}
	if len(q.Keys) > 0 && !contains(q.Keys, rec.Key) {
		return false
	}
	return rec.Importance >= q.MinImportance
}

// SortForRecall orders records by importance desc, then most recently updated
func SortForRecall(records []*Record) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Importance != records[j].Importance {
			return records[i].Importance > records[j].Importance
		}
		return records[i].UpdatedAt.After(records[j].UpdatedAt)
	})
}

// SortForEviction orders records by importance asc, then least recently accessed
func SortForEviction(records []*Record) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Importance != records[j].Importance {
			return records[i].Importance < records[j].Importance
		}
		return records[i].LastAccessedAt.Before(records[j].LastAccessedAt)
	})
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
