// Package audit provides the domain contract for operation audit logging.
// The storage implementation lives in infrastructure.
package audit

import (
	"context"

	"lotkeeper/internal/core/id"
)

// Action represents the type of audited operation.
type Action string

const (
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionReserve Action = "reserve"
	ActionRelease Action = "release"
	ActionConsume Action = "consume"
	ActionShip    Action = "ship"
	ActionReceive Action = "receive"
	ActionCancel  Action = "cancel"
)

// Recorder records entity change snapshots for later reconciliation.
// Record is called inside the caller's transaction: a recording failure fails
// the whole operation, keeping the audit trail atomic with the change it
// describes.
type Recorder interface {
	Record(ctx context.Context, entityType string, entityID id.ID, action Action, changes map[string]any) error
}

// NopRecorder discards all entries. Used in tests and minimal wiring.
type NopRecorder struct{}

// Record implements Recorder.
func (NopRecorder) Record(ctx context.Context, entityType string, entityID id.ID, action Action, changes map[string]any) error {
	return nil
}

var _ Recorder = NopRecorder{}
