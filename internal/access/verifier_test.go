package access

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursevault/coursevault-backend/pkg/enums"
	"github.com/coursevault/coursevault-backend/pkg/metrics"
	"github.com/coursevault/coursevault-backend/pkg/models"
)

type stubBindings struct {
	binding  models.LicenseBinding
	found    bool
	touched  int
	touchErr error
}

func (s *stubBindings) Get(_ context.Context, _, _ string) (models.LicenseBinding, bool) {
	return s.binding, s.found
}

func (s *stubBindings) TouchAccess(_ context.Context, _, _ string) error {
	s.touched++
	return s.touchErr
}

func newVerifier(t *testing.T, bindings *stubBindings) Verifier {
	t.Helper()
	v, err := NewVerifier(bindings, metrics.NewLicensingMetrics(nil))
	require.NoError(t, err)
	return v
}

func TestVerifyDecisionOrder(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		bindings *stubBindings
		reason   enums.AccessReason
	}{
		{
			name:     "no binding on record",
			bindings: &stubBindings{},
			reason:   enums.AccessReasonNoLicense,
		},
		{
			name: "revoked binding wins over mismatch",
			bindings: &stubBindings{
				found:   true,
				binding: models.LicenseBinding{DeviceFingerprint: "fp_other", IsValid: false},
			},
			reason: enums.AccessReasonRevoked,
		},
		{
			name: "valid binding on another device",
			bindings: &stubBindings{
				found:   true,
				binding: models.LicenseBinding{DeviceFingerprint: "fp_other", IsValid: true},
			},
			reason: enums.AccessReasonDeviceMismatch,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := newVerifier(t, tc.bindings)

			decision, err := v.Verify(ctx, "u1", "c1", "fp_mine")
			require.NoError(t, err)
			assert.False(t, decision.Granted)
			assert.Equal(t, tc.reason, decision.Reason)
			assert.Zero(t, tc.bindings.touched)
		})
	}
}

func TestVerifyGrantTouchesBinding(t *testing.T) {
	bindings := &stubBindings{
		found:   true,
		binding: models.LicenseBinding{DeviceFingerprint: "fp_mine", IsValid: true},
	}
	v := newVerifier(t, bindings)

	decision, err := v.Verify(context.Background(), "u1", "c1", "fp_mine")
	require.NoError(t, err)
	assert.True(t, decision.Granted)
	assert.Empty(t, decision.Reason)
	assert.Equal(t, 1, bindings.touched)
}

func TestVerifyPropagatesTouchFailure(t *testing.T) {
	bindings := &stubBindings{
		found:    true,
		binding:  models.LicenseBinding{DeviceFingerprint: "fp_mine", IsValid: true},
		touchErr: errors.New("disk full"),
	}
	v := newVerifier(t, bindings)

	_, err := v.Verify(context.Background(), "u1", "c1", "fp_mine")
	require.Error(t, err)
}
