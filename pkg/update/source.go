// Package update implements the update and liveness coordinator: it turns
// poll ticks into update checks, reconciles "available" signals with the
// user through a two-choice prompt, and reloads the application once an
// update has been activated.
package update

import (
	"context"
	"errors"

	"gitlab.com/tinyland/lab/responder/pkg/feed"
)

var (
	// ErrDisabled is returned by sources when updates are turned off.
	ErrDisabled = errors.New("update: updates are disabled")
	// ErrNoPendingUpdate is returned by ActivateUpdate when no newer
	// version has been seen yet.
	ErrNoPendingUpdate = errors.New("update: no pending update to activate")
)

// updateMessageKey is the application-data field shown in the prompt.
const updateMessageKey = "updateMessage"

// Version describes one application build.
type Version struct {
	Version string         `json:"version" yaml:"version"`
	Hash    string         `json:"hash,omitempty" yaml:"hash,omitempty"`
	AppData map[string]any `json:"appData,omitempty" yaml:"appData,omitempty"`
}

// AvailableNotice is delivered when a newer version than the running one
// has been found.
type AvailableNotice struct {
	Current   Version
	Available Version
}

// UpdateMessage returns the notice's "updateMessage" application-data
// field. ok is false when the field is missing or not a string.
func (n AvailableNotice) UpdateMessage() (msg string, ok bool) {
	v, found := n.Available.AppData[updateMessageKey]
	if !found {
		return "", false
	}
	msg, ok = v.(string)
	return msg, ok
}

// ActivatedNotice is delivered once a newer version has been activated,
// by this process or by another instance sharing the same state.
type ActivatedNotice struct {
	Previous Version
	Current  Version
}

// Source is the update backend the coordinator drives. CheckForUpdate and
// ActivateUpdate only report failure; outcomes are observed through the
// Available and Activated feeds.
type Source interface {
	Enabled() bool
	CheckForUpdate(ctx context.Context) error
	ActivateUpdate(ctx context.Context) error
	Available() *feed.Feed[AvailableNotice]
	Activated() *feed.Feed[ActivatedNotice]
}
