package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnakeCase(t *testing.T) {
	tests := map[string]string{
		"listingId":         "listing_id",
		"escrowReferenceId": "escrow_reference_id",
		"listing_id":        "listing_id",
		"status":            "status",
		"loiId":             "loi_id",
	}
	for in, want := range tests {
		assert.Equal(t, want, SnakeCase(in), in)
	}
}

func TestDecodeJSON_AcceptsBothSpellings(t *testing.T) {
	var camel CreateEscrowRequest
	require.NoError(t, DecodeJSON([]byte(`{"listingId":"l1","sellerId":"s1","escrowAmount":920000,"escrowReferenceId":"ref-9"}`), &camel))
	assert.Equal(t, "l1", camel.ListingID)
	assert.Equal(t, "s1", camel.SellerID)
	assert.Equal(t, int64(920000), camel.EscrowAmount)
	require.NotNil(t, camel.EscrowReferenceID)
	assert.Equal(t, "ref-9", *camel.EscrowReferenceID)

	var snake EscrowIDRequest
	require.NoError(t, DecodeJSON([]byte(`{"escrow_id":"e1"}`), &snake))
	assert.Equal(t, "e1", snake.EscrowID)

	var camelID EscrowIDRequest
	require.NoError(t, DecodeJSON([]byte(`{"escrowId":"e2"}`), &camelID))
	assert.Equal(t, "e2", camelID.EscrowID)
}

func TestDecodeJSON_SnakeWins(t *testing.T) {
	for i := 0; i < 20; i++ {
		var req EscrowIDRequest
		require.NoError(t, DecodeJSON([]byte(`{"escrowId":"camel","escrow_id":"snake"}`), &req))
		assert.Equal(t, "snake", req.EscrowID)
	}
}

func TestDecodeJSON_RejectsNonObject(t *testing.T) {
	var req EscrowIDRequest
	assert.Error(t, DecodeJSON([]byte(`[1,2]`), &req))
	assert.Error(t, DecodeJSON([]byte(`{`), &req))
}
