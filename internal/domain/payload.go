package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

var ErrInvalidPayload = errors.New("invalid notification payload")

// Payload is the event-specific body of a notification. The concrete types are
// PostData, CommunityData, ChainEventData and SnapshotData.
type Payload interface {
	// CommunityID returns the community (chain) the event belongs to, if any.
	CommunityID() string
	// ThreadID returns the owning thread, if the payload refers to one.
	ThreadID() (int64, bool)

	isPayload()
}

// PostData is emitted for thread, comment, reaction, mention and collaboration events.
type PostData struct {
	CreatedAt         time.Time `json:"created_at"`
	Thread            any       `json:"thread_id"`
	RootTitle         string    `json:"root_title"`
	RootType          string    `json:"root_type"`
	CommentID         *int64    `json:"comment_id,omitempty"`
	CommentText       string    `json:"comment_text,omitempty"`
	ParentCommentID   *int64    `json:"parent_comment_id,omitempty"`
	ParentCommentText string    `json:"parent_comment_text,omitempty"`
	ChainID           string    `json:"chain_id"`
	AuthorAddress     string    `json:"author_address"`
	AuthorChain       string    `json:"author_chain"`
	ViewCount         *int64    `json:"view_count,omitempty"`
	LikeCount         *int64    `json:"like_count,omitempty"`
}

func (d *PostData) CommunityID() string { return d.ChainID }

func (d *PostData) ThreadID() (int64, bool) { return coerceID(d.Thread) }

func (*PostData) isPayload() {}

// CommunityData is the older community-scoped shape, which names its community
// "chain" rather than "chain_id".
type CommunityData struct {
	CreatedAt     time.Time `json:"created_at"`
	RoleID        any       `json:"role_id,omitempty"`
	AuthorAddress string    `json:"author_address"`
	Chain         string    `json:"chain"`
	IterationID   *int64    `json:"iteration_id,omitempty"`
}

func (d *CommunityData) CommunityID() string { return d.Chain }

func (d *CommunityData) ThreadID() (int64, bool) { return 0, false }

func (*CommunityData) isPayload() {}

// ChainEventData wraps an event ingested from a chain listener. ID is the
// listener's own event id and is what makes the notification unique.
type ChainEventData struct {
	ID          int64           `json:"id"`
	BlockNumber int64           `json:"block_number"`
	EventData   json.RawMessage `json:"event_data"`
	Network     string          `json:"network"`
	Chain       string          `json:"chain"`
}

func (d *ChainEventData) CommunityID() string { return d.Chain }

func (d *ChainEventData) ThreadID() (int64, bool) { return 0, false }

func (*ChainEventData) isPayload() {}

// Kind returns the "kind" field of the raw event, used for labelling.
func (d *ChainEventData) Kind() string {
	var head struct {
		Kind string `json:"kind"`
	}
	if len(d.EventData) == 0 {
		return ""
	}
	if err := json.Unmarshal(d.EventData, &head); err != nil {
		return ""
	}
	return head.Kind
}

// SnapshotData describes a snapshot.org proposal lifecycle event.
type SnapshotData struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Body      string   `json:"body"`
	Choices   []string `json:"choices"`
	Space     string   `json:"space"`
	EventType string   `json:"eventType"`
	Start     string   `json:"start"`
	Expire    string   `json:"expire"`
	ChainID   string   `json:"chain_id,omitempty"`
}

func (d *SnapshotData) CommunityID() string { return d.ChainID }

func (d *SnapshotData) ThreadID() (int64, bool) { return 0, false }

func (*SnapshotData) isPayload() {}

// IsChainEvent reports whether p is a chain-event payload.
func IsChainEvent(p Payload) bool {
	_, ok := p.(*ChainEventData)
	return ok
}

// EncodePayload serializes p. Field order follows the struct declaration, so
// identical payloads always produce identical strings.
func EncodePayload(p Payload) (string, error) {
	if p == nil {
		return "", ErrInvalidPayload
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	return string(b), nil
}

// DecodePayload parses raw notification data into the payload variant the
// category implies.
func DecodePayload(category Category, raw []byte) (Payload, error) {
	var p Payload
	switch {
	case category == CategoryChainEvent:
		p = &ChainEventData{}
	case category == CategorySnapshotProposal:
		p = &SnapshotData{}
	case category.IsForum():
		if looksLikeCommunityData(raw) {
			p = &CommunityData{}
		} else {
			p = &PostData{}
		}
	default:
		return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidPayload, category)
	}

	if err := json.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if ce, ok := p.(*ChainEventData); ok && ce.ID == 0 {
		return nil, fmt.Errorf("%w: chain event without id", ErrInvalidPayload)
	}
	return p, nil
}

func looksLikeCommunityData(raw []byte) bool {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return false
	}
	_, hasChain := probe["chain"]
	_, hasChainID := probe["chain_id"]
	return hasChain && !hasChainID
}

// DedupKey decides which existing notification, if any, an event maps onto.
type DedupKey interface {
	isDedupKey()
}

// ChainEventKey dedups on the upstream chain event id.
type ChainEventKey struct {
	ExternalID int64
}

// ForumKey dedups on byte-equality of the serialized payload.
type ForumKey struct {
	Serialized string
}

func (ChainEventKey) isDedupKey() {}
func (ForumKey) isDedupKey()      {}

// DedupKeyFor resolves the idempotency key of a payload.
func DedupKeyFor(p Payload) (DedupKey, error) {
	if ce, ok := p.(*ChainEventData); ok {
		if ce.ID == 0 {
			return nil, fmt.Errorf("%w: chain event without id", ErrInvalidPayload)
		}
		return ChainEventKey{ExternalID: ce.ID}, nil
	}
	serialized, err := EncodePayload(p)
	if err != nil {
		return nil, err
	}
	return ForumKey{Serialized: serialized}, nil
}

// coerceID accepts numbers and numeric strings; anything else is absent.
func coerceID(v any) (int64, bool) {
	switch id := v.(type) {
	case nil:
		return 0, false
	case int:
		return int64(id), true
	case int64:
		return id, true
	case float64:
		if id != float64(int64(id)) {
			return 0, false
		}
		return int64(id), true
	case json.Number:
		n, err := id.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}
