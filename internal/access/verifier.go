// Package access decides whether a device may play a course. Denials
// are data, not errors; only infrastructure failures surface as
// errors.
package access

import (
	"context"
	"fmt"

	"github.com/coursevault/coursevault-backend/pkg/enums"
	"github.com/coursevault/coursevault-backend/pkg/metrics"
	"github.com/coursevault/coursevault-backend/pkg/models"
)

// bindingSource is the slice of the binding store the verifier needs.
type bindingSource interface {
	Get(ctx context.Context, userID, courseID string) (models.LicenseBinding, bool)
	TouchAccess(ctx context.Context, userID, courseID string) error
}

// Decision is the outcome of a verification. Reason is set only when
// access is denied.
type Decision struct {
	Granted bool               `json:"granted"`
	Reason  enums.AccessReason `json:"reason,omitempty"`
}

// Verifier checks a presented device fingerprint against the recorded
// binding for a course.
type Verifier interface {
	Verify(ctx context.Context, userID, courseID, deviceFingerprint string) (Decision, error)
}

type verifier struct {
	bindings bindingSource
	metrics  *metrics.LicensingMetrics
}

// NewVerifier builds an access verifier.
func NewVerifier(bindings bindingSource, m *metrics.LicensingMetrics) (Verifier, error) {
	if bindings == nil {
		return nil, fmt.Errorf("binding source required")
	}
	if m == nil {
		return nil, fmt.Errorf("metrics required")
	}
	return &verifier{bindings: bindings, metrics: m}, nil
}

// Verify resolves the current binding and checks it in a fixed order:
// a missing binding denies with NO_LICENSE, a revoked one with
// REVOKED, a fingerprint mismatch with DEVICE_MISMATCH. A grant stamps
// the binding's last access time before returning.
func (v *verifier) Verify(ctx context.Context, userID, courseID, deviceFingerprint string) (Decision, error) {
	binding, ok := v.bindings.Get(ctx, userID, courseID)

	var reason enums.AccessReason
	switch {
	case !ok:
		reason = enums.AccessReasonNoLicense
	case !binding.IsValid:
		reason = enums.AccessReasonRevoked
	case binding.DeviceFingerprint != deviceFingerprint:
		reason = enums.AccessReasonDeviceMismatch
	}

	if reason != "" {
		v.metrics.ObserveDenial(reason)
		return Decision{Granted: false, Reason: reason}, nil
	}

	if err := v.bindings.TouchAccess(ctx, userID, courseID); err != nil {
		v.metrics.ObserveStoreFailure("bindings")
		return Decision{}, err
	}

	v.metrics.ObserveGrant()
	return Decision{Granted: true}, nil
}
