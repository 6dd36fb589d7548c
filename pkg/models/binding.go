package models

import "time"

// LicenseBinding ties one user's course entitlement to one device
// fingerprint at a time. Revocation flips IsValid and keeps the record
// for audit; a later purchase appends a new generation instead of
// mutating the revoked one.
type LicenseBinding struct {
	UserID            string    `json:"user_id"`
	CourseID          string    `json:"course_id"`
	LicenseKey        string    `json:"license_key"`
	DeviceFingerprint string    `json:"device_fingerprint"`
	BoundAt           time.Time `json:"bound_at"`
	LastAccessAt      time.Time `json:"last_access_at"`
	IsValid           bool      `json:"is_valid"`
}

// Key returns the composite identity of the binding's (user, course) pair.
func (b LicenseBinding) Key() string {
	return b.UserID + "\x00" + b.CourseID
}
