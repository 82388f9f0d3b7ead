package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestCanAdvance(t *testing.T) {
	tests := []struct {
		from     string
		to       string
		expected bool
	}{
		// Forward and equal moves
		{EscrowStatusInitiated, EscrowStatusFunded, true},
		{EscrowStatusFunded, EscrowStatusInMigration, true},
		{EscrowStatusInMigration, EscrowStatusComplete, true},
		{EscrowStatusComplete, EscrowStatusReleased, true},
		{EscrowStatusFunded, EscrowStatusFunded, true},

		// Skipping ahead
		{EscrowStatusInitiated, EscrowStatusComplete, true},
		{EscrowStatusInitiated, EscrowStatusReleased, true},

		// Backwards
		{EscrowStatusFunded, EscrowStatusInitiated, false},
		{EscrowStatusReleased, EscrowStatusComplete, false},
		{EscrowStatusComplete, EscrowStatusInMigration, false},

		// Provider spellings rank like their canonical forms
		{EscrowStatusMigrationInProgress, EscrowStatusFunded, false},
		{EscrowStatusMigrationInProgress, EscrowStatusInMigration, true},
		{EscrowStatusCompleted, EscrowStatusInMigration, false},
		{EscrowStatusCompleted, EscrowStatusReleased, true},

		// Side statuses are final and never a target
		{EscrowStatusCancelled, EscrowStatusReleased, false},
		{EscrowStatusDisputed, EscrowStatusFunded, false},
		{EscrowStatusInitiated, EscrowStatusCancelled, false},
		{EscrowStatusInitiated, EscrowStatusDisputed, false},

		// Unknown targets
		{EscrowStatusInitiated, "nonexistent", false},
		{EscrowStatusInitiated, EscrowStatusCompleted, false},

		// Unranked provider pass-through
		{"on_hold", EscrowStatusFunded, true},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			result := CanAdvance(tt.from, tt.to)
			if result != tt.expected {
				t.Errorf("CanAdvance(%q, %q) = %v, want %v", tt.from, tt.to, result, tt.expected)
			}
		})
	}
}

func TestMapProviderStatus(t *testing.T) {
	tests := map[string]string{
		"initiated":         EscrowStatusInitiated,
		"funded":            EscrowStatusFunded,
		"migration_started": EscrowStatusMigrationInProgress,
		"completed":         EscrowStatusCompleted,
		"released":          EscrowStatusReleased,
		"cancelled":         EscrowStatusCancelled,
		"disputed":          EscrowStatusDisputed,
		"on_hold":           "on_hold",
	}
	for in, want := range tests {
		if got := MapProviderStatus(in); got != want {
			t.Errorf("MapProviderStatus(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAllForwardStatusesRanked(t *testing.T) {
	prev := -1
	for _, s := range ForwardStatuses {
		o, ok := StatusOrdinal(s)
		if !ok {
			t.Fatalf("status %q missing from ordinal table", s)
		}
		if o <= prev {
			t.Errorf("status %q ordinal %d not above previous %d", s, o, prev)
		}
		prev = o
	}
}

func TestStampStatus_SetsOnce(t *testing.T) {
	e := &EscrowTransaction{}
	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)

	e.StampStatus(EscrowStatusFunded, first)
	e.StampStatus(EscrowStatusFunded, second)
	if e.FundedAt == nil || !e.FundedAt.Equal(first) {
		t.Fatalf("FundedAt = %v, want %v", e.FundedAt, first)
	}

	e.StampStatus(EscrowStatusMigrationInProgress, first)
	if e.MigrationStartedAt == nil {
		t.Error("migration_in_progress should stamp MigrationStartedAt")
	}
	e.StampStatus(EscrowStatusCompleted, first)
	if e.CompletedAt == nil {
		t.Error("completed should stamp CompletedAt")
	}
	e.StampStatus(EscrowStatusCancelled, first)
	if e.ReleasedAt != nil {
		t.Error("cancelled must not stamp ReleasedAt")
	}
}

func TestAppendNote(t *testing.T) {
	e := &EscrowTransaction{}
	e.AppendNote("first")
	e.AppendNote("")
	e.AppendNote("second")
	if e.Notes == nil || *e.Notes != "first\nsecond" {
		t.Errorf("notes = %v", e.Notes)
	}
}

func TestSetFees_NeverOverwrites(t *testing.T) {
	e := &EscrowTransaction{EscrowAmount: 1000}
	if !e.SetFees(decimal.NewFromInt(5), 50, 1050, 1000) {
		t.Fatal("first SetFees should apply")
	}
	if e.SetFees(decimal.RequireFromString("2.5"), 25, 1025, 1000) {
		t.Fatal("second SetFees should be ignored")
	}
	if *e.PlatformFeeAmount != 50 || !e.PlatformFeePercent.Equal(decimal.NewFromInt(5)) {
		t.Errorf("fees overwritten: %d at %s", *e.PlatformFeeAmount, e.PlatformFeePercent)
	}
}

func TestIsParty(t *testing.T) {
	buyer, seller := uuid.New(), uuid.New()
	e := &EscrowTransaction{BuyerID: buyer, SellerID: seller}
	if !e.IsParty(buyer) || !e.IsParty(seller) {
		t.Error("buyer and seller should be parties")
	}
	if e.IsParty(uuid.New()) || e.IsParty(uuid.Nil) {
		t.Error("stranger should not be a party")
	}
}
