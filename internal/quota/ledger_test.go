package quota

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"

	"github.com/inkhouse/scribe/config"
)

var testCfg = config.QuotaConfig{Limit: 5, Window: 24 * time.Hour}

func TestAdmitAdminBypassesStore(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ledger := NewLedger(db, testCfg)

	dec, err := ledger.Admit(context.Background(), IdentityKey("auth0|admin"), true)
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if !dec.Allowed {
		t.Fatalf("admin must always be admitted")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("admin admission must not touch the counter: %v", err)
	}
}

func TestAdmitFirstRequestSetsWindowExpiry(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ledger := NewLedger(db, testCfg)
	key := IdentityKey("auth0|user-1")

	mock.ExpectIncr(key).SetVal(1)
	mock.ExpectPTTL(key).SetVal(-1)
	mock.ExpectExpire(key, testCfg.Window).SetVal(true)

	dec, err := ledger.Admit(context.Background(), key, false)
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if !dec.Allowed {
		t.Fatalf("first request in a window must be admitted")
	}
	if dec.Remaining != 4 {
		t.Fatalf("expected 4 remaining, got %d", dec.Remaining)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAdmitSecondRequestKeepsExpiry(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ledger := NewLedger(db, testCfg)
	key := IdentityKey("auth0|user-1")

	mock.ExpectIncr(key).SetVal(2)
	mock.ExpectPTTL(key).SetVal(23 * time.Hour)
	// no Expire expected: a second increment must not reset the window

	dec, err := ledger.Admit(context.Background(), key, false)
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if !dec.Allowed || dec.Remaining != 3 {
		t.Fatalf("unexpected decision: %+v", dec)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAdmitOverLimitRejectsWithRetryAfter(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ledger := NewLedger(db, testCfg)
	key := IdentityKey("auth0|user-1")

	mock.ExpectIncr(key).SetVal(6)
	mock.ExpectPTTL(key).SetVal(90 * time.Minute)

	dec, err := ledger.Admit(context.Background(), key, false)
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if dec.Allowed {
		t.Fatalf("request over the limit must be rejected")
	}
	if dec.RetryAfter != 90*time.Minute {
		t.Fatalf("expected retry-after from store ttl, got %v", dec.RetryAfter)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAdmitLastSlot(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ledger := NewLedger(db, testCfg)
	key := AddressKey("203.0.113.7")

	mock.ExpectIncr(key).SetVal(5)
	mock.ExpectPTTL(key).SetVal(time.Hour)

	dec, err := ledger.Admit(context.Background(), key, false)
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if !dec.Allowed || dec.Remaining != 0 {
		t.Fatalf("expected admission with 0 remaining, got %+v", dec)
	}
}

func TestAdmitRepairsMissingWindowExpiry(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ledger := NewLedger(db, testCfg)
	key := IdentityKey("auth0|user-1")

	// count > 1 with no TTL means the first-increment EXPIRE was lost;
	// the window must be reattached or the counter never resets
	mock.ExpectIncr(key).SetVal(3)
	mock.ExpectPTTL(key).SetVal(-1)
	mock.ExpectExpire(key, testCfg.Window).SetVal(true)

	dec, err := ledger.Admit(context.Background(), key, false)
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if !dec.Allowed || dec.Remaining != 2 {
		t.Fatalf("unexpected decision: %+v", dec)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAdmitRejectedWithRepairedExpiryReportsFullWindow(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ledger := NewLedger(db, testCfg)
	key := IdentityKey("auth0|user-1")

	mock.ExpectIncr(key).SetVal(6)
	mock.ExpectPTTL(key).SetVal(-1)
	mock.ExpectExpire(key, testCfg.Window).SetVal(true)

	dec, err := ledger.Admit(context.Background(), key, false)
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if dec.Allowed {
		t.Fatalf("request over the limit must be rejected")
	}
	if dec.RetryAfter != testCfg.Window {
		t.Fatalf("expected retry-after of the reattached window, got %v", dec.RetryAfter)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAdmitStoreError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ledger := NewLedger(db, testCfg)
	key := IdentityKey("auth0|user-1")

	mock.ExpectIncr(key).SetErr(context.DeadlineExceeded)

	if _, err := ledger.Admit(context.Background(), key, false); err == nil {
		t.Fatalf("expected store error to propagate")
	}
}

func TestKeyDerivation(t *testing.T) {
	if IdentityKey("auth0|u") != "quota:auth0|u" {
		t.Fatalf("unexpected identity key")
	}
	if AddressKey("198.51.100.1") != "quota:ip:198.51.100.1" {
		t.Fatalf("unexpected address key")
	}
}
