package config

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PLATFORM_FEE_PERCENT", "")
	t.Setenv("ADMIN_USER_IDS", "")
	t.Setenv("API_PORT", "")

	cfg := Load()

	assert.True(t, cfg.PlatformFeePercent.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, "3000", cfg.APIPort)
	assert.Empty(t, cfg.AdminUserIDs)
}

func TestLoad_FeePercent(t *testing.T) {
	t.Setenv("PLATFORM_FEE_PERCENT", "2.5")
	assert.Equal(t, "2.5", Load().PlatformFeePercent.String())

	t.Setenv("PLATFORM_FEE_PERCENT", "not-a-number")
	assert.True(t, Load().PlatformFeePercent.Equal(decimal.NewFromInt(5)))

	t.Setenv("PLATFORM_FEE_PERCENT", "150")
	assert.True(t, Load().PlatformFeePercent.Equal(decimal.NewFromInt(5)))
}

func TestLoad_AdminList(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	t.Setenv("ADMIN_USER_IDS", a.String()+", garbage ,"+b.String()+",")

	cfg := Load()

	assert.Equal(t, []uuid.UUID{a, b}, cfg.AdminUserIDs)
	assert.True(t, cfg.IsBootstrapAdmin(a))
	assert.False(t, cfg.IsBootstrapAdmin(uuid.New()))
}

func TestLoad_InvoiceBaseURLTrimmed(t *testing.T) {
	t.Setenv("INVOICE_BASE_URL", "https://billing.example.com/")
	assert.Equal(t, "https://billing.example.com", Load().InvoiceBaseURL)
}
