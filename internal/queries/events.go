package queries

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/plateau-io/plateau/internal/domain/event"
	"github.com/plateau-io/plateau/internal/storage/cursor"
)

const (
	defaultEventPageSize = 50
	maxEventPageSize     = 200
)

// EventPage is one page of a platform's journal, with an opaque token for
// the next page. The token is bound to the platform id; presenting it
// against a different platform fails.
type EventPage struct {
	Events        []event.Event
	NextPageToken string
}

// ListPlatformEvents pages through a platform's journal. With descending set,
// the newest events come first. An empty page token starts from the edge.
func (s Service) ListPlatformEvents(ctx context.Context, platformID string, pageSize int, pageToken string, descending bool) (EventPage, error) {
	if strings.TrimSpace(platformID) == "" {
		return EventPage{}, fmt.Errorf("platform id is required")
	}
	if pageSize <= 0 {
		pageSize = defaultEventPageSize
	}
	if pageSize > maxEventPageSize {
		pageSize = maxEventPageSize
	}

	afterSeq := uint64(0)
	beforeSeq := uint64(math.MaxUint64)
	if pageToken != "" {
		token, err := cursor.Decode(pageToken)
		if err != nil {
			return EventPage{}, fmt.Errorf("invalid page token: %w", err)
		}
		if err := cursor.ValidateScope(token, platformID); err != nil {
			return EventPage{}, fmt.Errorf("invalid page token: %w", err)
		}
		descending = token.Dir == cursor.DirectionBackward
		if descending {
			beforeSeq = token.Seq
		} else {
			afterSeq = token.Seq
		}
	}

	var events []event.Event
	var err error
	if descending {
		events, err = s.Store.ListEventsBefore(ctx, platformID, beforeSeq, pageSize)
	} else {
		events, err = s.Store.ListEvents(ctx, platformID, afterSeq, pageSize)
	}
	if err != nil {
		return EventPage{}, err
	}

	page := EventPage{Events: events}
	if len(events) == pageSize {
		edge := events[len(events)-1].Seq
		var next cursor.Cursor
		if descending {
			next = cursor.NewBackwardCursor(edge, platformID)
		} else {
			next = cursor.NewForwardCursor(edge, platformID)
		}
		token, err := cursor.Encode(next)
		if err != nil {
			return EventPage{}, fmt.Errorf("encode page token: %w", err)
		}
		page.NextPageToken = token
	}
	return page, nil
}
