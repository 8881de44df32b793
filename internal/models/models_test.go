package models_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reward-guard-backend/internal/models"
)

func TestClaimRecordState(t *testing.T) {
	record := &models.ClaimRecord{Subject: "0xabc", Resource: "faucet"}
	assert.Equal(t, models.ClaimStatePending, record.State())

	record.Reference = "ref-1"
	assert.Equal(t, models.ClaimStateReferenced, record.State())

	record.Claimed = true
	assert.Equal(t, models.ClaimStateClaimed, record.State())
}

func TestErrorKinds(t *testing.T) {
	err := models.NewError(models.KindAmountMismatch, "stored 1, requested 2")
	assert.Equal(t, models.KindAmountMismatch, models.KindOf(err))
	assert.Equal(t, http.StatusBadRequest, models.HTTPStatus(models.KindOf(err)))

	wrapped := models.WrapError(models.KindStoreUnavailable, "redis down", errors.New("dial tcp"))
	assert.Equal(t, models.KindStoreUnavailable, models.KindOf(wrapped))
	assert.ErrorContains(t, errors.Unwrap(wrapped.(*models.AppError)), "dial tcp")

	// Untyped errors must not leak to clients as anything but internal.
	assert.Equal(t, models.KindStoreUnavailable, models.KindOf(errors.New("boom")))

	assert.Equal(t, http.StatusConflict, models.HTTPStatus(models.KindAlreadyClaimed))
	assert.Equal(t, http.StatusTooManyRequests, models.HTTPStatus(models.KindRateLimited))
	assert.Equal(t, http.StatusForbidden, models.HTTPStatus(models.KindCSRFInvalid))
	assert.Equal(t, http.StatusNotFound, models.HTTPStatus(models.KindReferenceNotFound))
}

func TestGenerateOpaqueToken(t *testing.T) {
	first, err := models.GenerateOpaqueToken()
	require.NoError(t, err)
	assert.Len(t, first, 32) // 16 bytes hex-encoded

	second, err := models.GenerateOpaqueToken()
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestValidAddress(t *testing.T) {
	assert.True(t, models.ValidAddress("0x8ba1f109551bD432803012645Ac136ddd64DBA72"))
	assert.False(t, models.ValidAddress("not-an-address"))
	assert.False(t, models.ValidAddress("0x123"))
}

func TestParseAmount(t *testing.T) {
	amount, err := models.ParseAmount("1.25")
	require.NoError(t, err)
	assert.Equal(t, "1.25", amount.String())

	_, err = models.ParseAmount("-3")
	assert.Error(t, err)

	_, err = models.ParseAmount("abc")
	assert.Error(t, err)
}
