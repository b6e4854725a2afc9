package contract

import (
	"context"
	"encoding/json"
	"time"
)

// RemoteSurface is the single browser peer of a conversation.
type RemoteSurface interface {
	Call(ctx context.Context, method string, payload any, timeout time.Duration) (json.RawMessage, error)
	Navigate(ctx context.Context, url string) error
}

type CatalogGateway interface {
	Search(ctx context.Context, query string) ([]Candidate, error)
	FetchDetail(ctx context.Context, ref ProductRef) (ProductDetail, error)
}

type OrderEventSink interface {
	OrderCompleted(ctx context.Context, evt OrderEvent) error
}
