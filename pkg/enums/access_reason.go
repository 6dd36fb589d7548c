package enums

// AccessReason explains why playback access was denied. Denial is a
// routine outcome carried as data, never an error.
type AccessReason string

const (
	AccessReasonNoLicense      AccessReason = "NO_LICENSE"
	AccessReasonRevoked        AccessReason = "REVOKED"
	AccessReasonDeviceMismatch AccessReason = "DEVICE_MISMATCH"
)

// String implements fmt.Stringer.
func (a AccessReason) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AccessReason.
func (a AccessReason) IsValid() bool {
	switch a {
	case AccessReasonNoLicense, AccessReasonRevoked, AccessReasonDeviceMismatch:
		return true
	}
	return false
}
