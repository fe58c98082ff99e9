package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gitlab.com/tinyland/lab/responder/pkg/feed"
)

// MemoryService is an in-process Service used by tests and --use-mocks.
// Responses published after GetAll was called are streamed to it as well.
type MemoryService struct {
	mu        sync.RWMutex
	responses []EventResponse
	byID      map[int64]int
	acks      map[int64][]Acknowledgement

	published *feed.Feed[EventResponse]
}

// NewMemoryService returns a service preloaded with responses.
func NewMemoryService(responses ...EventResponse) *MemoryService {
	s := &MemoryService{
		byID:      make(map[int64]int),
		acks:      make(map[int64][]Acknowledgement),
		published: feed.New[EventResponse](),
	}
	for _, r := range responses {
		s.store(r)
	}
	return s
}

// Publish adds r and streams it to every active GetAll caller.
func (s *MemoryService) Publish(r EventResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store(r)
	s.published.Send(r)
}

// SetAcknowledgements replaces the acknowledgements for an event id.
func (s *MemoryService) SetAcknowledgements(id int64, acks []Acknowledgement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acks[id] = append([]Acknowledgement(nil), acks...)
}

// GetAll streams the current responses, then any published later.
func (s *MemoryService) GetAll(ctx context.Context) (<-chan EventResponse, error) {
	s.mu.RLock()
	snapshot := append([]EventResponse(nil), s.responses...)
	sub := s.published.Subscribe(64)
	s.mu.RUnlock()

	out := make(chan EventResponse)
	go func() {
		defer close(out)
		defer sub.Release()

		for _, r := range snapshot {
			select {
			case out <- r:
			case <-ctx.Done():
				return
			}
		}
		for {
			select {
			case <-ctx.Done():
				return
			case r, ok := <-sub.C():
				if !ok {
					return
				}
				select {
				case out <- r:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// GetByID returns the response for id or ErrNotFound.
func (s *MemoryService) GetByID(ctx context.Context, id int64) (EventResponse, error) {
	if err := ctx.Err(); err != nil {
		return EventResponse{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byID[id]
	if !ok {
		return EventResponse{}, fmt.Errorf("event %d: %w", id, ErrNotFound)
	}
	return s.responses[i], nil
}

// GetAcknowledgements returns a copy of the acknowledgements for r.
func (s *MemoryService) GetAcknowledgements(ctx context.Context, r EventResponse) ([]Acknowledgement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.byID[r.ID()]; !ok {
		return nil, fmt.Errorf("event %d: %w", r.ID(), ErrNotFound)
	}
	return append([]Acknowledgement(nil), s.acks[r.ID()]...), nil
}

// store must be called with s.mu held for writing.
func (s *MemoryService) store(r EventResponse) {
	if i, ok := s.byID[r.ID()]; ok {
		s.responses[i] = r
		return
	}
	s.byID[r.ID()] = len(s.responses)
	s.responses = append(s.responses, r)
}

// NewSampleService returns a MemoryService filled with a handful of
// plausible incidents relative to now.
func NewSampleService(now time.Time) *MemoryService {
	samples := []EmergencyEvent{
		{ID: 101, Created: now.Add(-3 * time.Hour), Title: "Gas leak reported", Location: "12 Harbour St", Severity: "high"},
		{ID: 102, Created: now.Add(-45 * time.Minute), Title: "Flooded underpass", Location: "Route 9 / Mill Rd", Severity: "medium"},
		{ID: 103, Created: now.Add(-10 * time.Minute), Title: "Structure fire", Location: "Old cannery", Severity: "critical"},
		{ID: 104, Created: now.Add(-26 * time.Hour), Title: "Downed power line", Location: "Birch Ave", Severity: "medium"},
	}

	s := NewMemoryService()
	for _, e := range samples {
		s.store(EventResponse{Event: e})
	}
	responded := now.Add(-2 * time.Hour)
	s.responses[s.byID[101]].Responded = true
	s.responses[s.byID[101]].RespondedAt = &responded
	s.acks[101] = []Acknowledgement{
		{ID: 1, EventID: 101, User: "dispatch", Note: "Utility notified", Created: now.Add(-170 * time.Minute)},
		{ID: 2, EventID: 101, User: "unit-7", Note: "On scene", Created: now.Add(-150 * time.Minute)},
	}
	s.acks[103] = []Acknowledgement{
		{ID: 3, EventID: 103, User: "dispatch", Note: "Two engines en route", Created: now.Add(-8 * time.Minute)},
	}
	return s
}
