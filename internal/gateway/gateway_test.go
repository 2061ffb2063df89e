package gateway

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"homecare-booking/internal/usecase"
	"homecare-booking/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_SelectsSandboxWithoutKey(t *testing.T) {
	gw := New(utils.PaymentConfig{}, zap.NewNop())
	_, ok := gw.(*SandboxGateway)
	assert.True(t, ok)
}

func TestSandboxGateway(t *testing.T) {
	gw := NewSandboxGateway(zap.NewNop())
	ctx := context.Background()

	charge, err := gw.CreateSubscriptionCharge(ctx, usecase.ChargeRequest{
		SubscriptionID: "sub-record",
		Plan:           "basic",
		Amount:         2900,
		SuccessURL:     "https://app.test/billing?tab=plan",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(charge.Token, "sbx_"))

	u, err := url.Parse(charge.CheckoutURL)
	require.NoError(t, err)
	assert.Equal(t, charge.Token, u.Query().Get("session_id"))
	assert.Equal(t, "plan", u.Query().Get("tab"))

	require.NoError(t, gw.CancelCharge(ctx, charge.Token))
	assert.True(t, gw.Cancelled(charge.Token))
}

func TestStripeGateway_RejectsUnknownToken(t *testing.T) {
	gw := NewStripeGateway("sk_test_dummy", zap.NewNop())
	err := gw.CancelCharge(context.Background(), "ord_123")
	assert.Error(t, err)
}
