package audit

import (
	"testing"

	"github.com/stickntrade/casino/internal/domain"
)

func TestEventOptions(t *testing.T) {
	e := &domain.AuditEvent{}

	WithAccount("acct-1")(e)
	WithRound("baccarat", "r1")(e)
	WithComponent("ledger")(e)

	if e.AccountID == nil || *e.AccountID != "acct-1" {
		t.Errorf("AccountID = %v, want acct-1", e.AccountID)
	}
	if e.TableID == nil || *e.TableID != "baccarat" {
		t.Errorf("TableID = %v, want baccarat", e.TableID)
	}
	if e.RoundID == nil || *e.RoundID != "r1" {
		t.Errorf("RoundID = %v, want r1", e.RoundID)
	}
	if e.Component != "ledger" {
		t.Errorf("Component = %q, want ledger", e.Component)
	}
}
