package events

import (
	"context"
	"errors"
)

// ErrNotFound is returned when the service has no event with the given id.
var ErrNotFound = errors.New("events: not found")

// Service is the data-fetch collaborator behind the home and detail screens.
type Service interface {
	// GetAll streams responses as they become known. The channel is closed
	// when ctx ends.
	GetAll(ctx context.Context) (<-chan EventResponse, error)
	// GetByID returns one response.
	GetByID(ctx context.Context, id int64) (EventResponse, error)
	// GetAcknowledgements returns the acknowledgements recorded for r.
	GetAcknowledgements(ctx context.Context, r EventResponse) ([]Acknowledgement, error)
}

var (
	_ Service = (*HTTPService)(nil)
	_ Service = (*MemoryService)(nil)
)
