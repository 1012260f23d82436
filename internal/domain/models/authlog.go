// internal/domain/models/authlog.go
package models

// Terminology: User Identifiers
//   - UserIdentity / userIdentity / user_identity: the account name the workstation reports (usually an email)
//   - DeviceID / deviceID / device_id: the Bluetooth or Wi-Fi MAC address bound to that account

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Action is the kind of authentication event.
type Action string

const (
	ActionLogin  Action = "login"
	ActionLogout Action = "logout"

	// ActionWarning is written by the presence monitor when a bound device
	// drops out of range. The event source never sends it.
	ActionWarning Action = "warning"
)

// IsIngestible reports whether the event source may submit this action.
func (a Action) IsIngestible() bool {
	return a == ActionLogin || a == ActionLogout
}

// AllActions returns every action the log store accepts.
func AllActions() []Action {
	return []Action{ActionLogin, ActionLogout, ActionWarning}
}

// PresenceDetails records whether the user's bound device was reachable
// when the event was ingested.
type PresenceDetails struct {
	BoundDeviceID string `bson:"bound_device_id" json:"boundDeviceId"`
	IsPresent     bool   `bson:"is_present" json:"isPresent"`
}

// LogEvent is an enriched authentication event.
//
// The event source supplies UserIdentity, Action, OccurredAt and
// FailedAttempts. Anomaly and Details are attached once during ingestion,
// after which the value is handed to the log store unchanged.
type LogEvent struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	UserIdentity   string             `bson:"user_identity" json:"userIdentity"`
	Action         Action             `bson:"action" json:"action"`
	OccurredAt     time.Time          `bson:"occurred_at" json:"occurredAt"`
	FailedAttempts int                `bson:"failed_attempts" json:"failedAttempts"`
	Anomaly        bool               `bson:"anomaly" json:"anomaly"`
	Details        PresenceDetails    `bson:"details" json:"details"`
	CreatedAt      time.Time          `bson:"created_at" json:"createdAt"`
}
