// internal/domain/models/binding.go
package models

import (
	"errors"
	"time"
)

// ErrBindingNotFound is returned by a user directory that has no binding
// for the requested identity.
var ErrBindingNotFound = errors.New("binding not found")

// UserBinding ties a user to the device whose presence is watched while
// they are logged in, and to the address that receives disconnect alerts.
type UserBinding struct {
	UserIdentity       string    `bson:"user_identity" json:"userIdentity" yaml:"user_identity"`
	BoundDeviceID      string    `bson:"bound_device_id" json:"boundDeviceId" yaml:"bound_device_id"`
	NotificationTarget string    `bson:"notification_target" json:"notificationTarget" yaml:"notification_target"`
	CreatedAt          time.Time `bson:"created_at" json:"createdAt" yaml:"-"`
	UpdatedAt          time.Time `bson:"updated_at" json:"updatedAt" yaml:"-"`
}
