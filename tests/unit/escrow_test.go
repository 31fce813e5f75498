package unit

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/fairhold/escrow-arbitration-service/internal/application"
	"github.com/fairhold/escrow-arbitration-service/internal/domain"
)

func TestDepositCreditsAvailable(t *testing.T) {
	fx := newService()
	p := startProject(t, fx.svc, projectKey(0x41), 1)
	acc := deposit(t, fx.svc, p, "dep-1", 5)
	if got := acc.AvailableBalance(domain.CurrencyNative); got != 5 { t.Fatalf("available = %d, want 5", got) }
	acc = deposit(t, fx.svc, p, "dep-2", 3)
	if got := acc.AvailableBalance(domain.CurrencyNative); got != 8 { t.Fatalf("available = %d, want 8", got) }
}

func TestDepositUnknownProject(t *testing.T) {
	fx := newService()
	client, _ := newParty(t)
	_, err := fx.svc.Deposit(context.Background(), actor(client, "dep-none"), application.DepositInput{ProjectKey: projectKey(0x42), Amount: 5, Currency: domain.CurrencyNative})
	if !errors.Is(err, domain.ErrNotFound) { t.Fatalf("expected ErrNotFound, got %v", err) }
}

func TestDepositRejectsNonPositiveAmount(t *testing.T) {
	fx := newService()
	p := startProject(t, fx.svc, projectKey(0x43), 1)
	_, err := fx.svc.Deposit(context.Background(), actor(p.client, "dep-zero"), application.DepositInput{ProjectKey: p.key, Amount: 0, Currency: domain.CurrencyNative})
	if !errors.Is(err, domain.ErrInvalidInput) { t.Fatalf("expected ErrInvalidInput, got %v", err) }
}

func TestDepositOverflowGuard(t *testing.T) {
	fx := newService()
	p := startProject(t, fx.svc, projectKey(0x44), 1)
	deposit(t, fx.svc, p, "dep-max", math.MaxInt64)
	_, err := fx.svc.Deposit(context.Background(), actor(p.client, "dep-over"), application.DepositInput{ProjectKey: p.key, Amount: 1, Currency: domain.CurrencyNative})
	if !errors.Is(err, domain.ErrAmountOverflow) { t.Fatalf("expected ErrAmountOverflow, got %v", err) }
	acc, err := fx.svc.GetEscrowBalance(context.Background(), actor(p.client, "dep-bal"), p.key)
	if err != nil { t.Fatalf("GetEscrowBalance: %v", err) }
	if got := acc.AvailableBalance(domain.CurrencyNative); got != math.MaxInt64 { t.Fatalf("available = %d after failed deposit, want MaxInt64", got) }
}

func TestOwnerWithdrawAgainstAvailable(t *testing.T) {
	fx := newService()
	p := startProject(t, fx.svc, projectKey(0x45), 1)
	deposit(t, fx.svc, p, "wd-dep", 10)
	acc, err := fx.svc.Withdraw(context.Background(), actor(p.client, "wd-1"), application.WithdrawInput{ProjectKey: p.key, Amount: 4, Currency: domain.CurrencyNative})
	if err != nil { t.Fatalf("Withdraw: %v", err) }
	if got := acc.AvailableBalance(domain.CurrencyNative); got != 6 { t.Fatalf("available = %d, want 6", got) }
	_, err = fx.svc.Withdraw(context.Background(), actor(p.client, "wd-2"), application.WithdrawInput{ProjectKey: p.key, Amount: 7, Currency: domain.CurrencyNative})
	if !errors.Is(err, domain.ErrInsufficientAvailable) { t.Fatalf("expected ErrInsufficientAvailable, got %v", err) }
}

func TestNonOwnerWithdrawNeedsAllowance(t *testing.T) {
	fx := newService()
	p := startProject(t, fx.svc, projectKey(0x46), 1)
	deposit(t, fx.svc, p, "alw-dep", 10)
	_, err := fx.svc.Withdraw(context.Background(), actor(p.maker, "alw-none"), application.WithdrawInput{ProjectKey: p.key, Amount: 1, Currency: domain.CurrencyNative})
	if !errors.Is(err, domain.ErrInsufficientAllowance) { t.Fatalf("expected ErrInsufficientAllowance, got %v", err) }
}

func TestWithdrawIdempotentReplay(t *testing.T) {
	fx := newService()
	p := startProject(t, fx.svc, projectKey(0x47), 1)
	deposit(t, fx.svc, p, "rep-dep", 10)
	first, err := fx.svc.Withdraw(context.Background(), actor(p.client, "rep-wd"), application.WithdrawInput{ProjectKey: p.key, Amount: 4, Currency: domain.CurrencyNative})
	if err != nil { t.Fatalf("Withdraw first: %v", err) }
	second, err := fx.svc.Withdraw(context.Background(), actor(p.client, "rep-wd"), application.WithdrawInput{ProjectKey: p.key, Amount: 4, Currency: domain.CurrencyNative})
	if err != nil { t.Fatalf("Withdraw replay: %v", err) }
	if first.AvailableBalance(domain.CurrencyNative) != second.AvailableBalance(domain.CurrencyNative) { t.Fatalf("replay mismatch: first=%d second=%d", first.AvailableBalance(domain.CurrencyNative), second.AvailableBalance(domain.CurrencyNative)) }
	acc, err := fx.svc.GetEscrowBalance(context.Background(), actor(p.client, "rep-bal"), p.key)
	if err != nil { t.Fatalf("GetEscrowBalance: %v", err) }
	if got := acc.AvailableBalance(domain.CurrencyNative); got != 6 { t.Fatalf("available = %d after replayed withdraw, want 6", got) }
}

func TestPerCurrencyBucketsAreIndependent(t *testing.T) {
	fx := newService()
	p := startProject(t, fx.svc, projectKey(0x48), 1)
	deposit(t, fx.svc, p, "cur-dep", 5)
	_, err := fx.svc.Deposit(context.Background(), actor(p.client, "cur-tok"), application.DepositInput{ProjectKey: p.key, Amount: 9, Currency: "tok_usdx"})
	if err != nil { t.Fatalf("Deposit token: %v", err) }
	_, err = fx.svc.Withdraw(context.Background(), actor(p.client, "cur-wd"), application.WithdrawInput{ProjectKey: p.key, Amount: 6, Currency: domain.CurrencyNative})
	if !errors.Is(err, domain.ErrInsufficientAvailable) { t.Fatalf("expected ErrInsufficientAvailable across currencies, got %v", err) }
	acc, err := fx.svc.GetEscrowBalance(context.Background(), actor(p.client, "cur-bal"), p.key)
	if err != nil { t.Fatalf("GetEscrowBalance: %v", err) }
	if acc.AvailableBalance("tok_usdx") != 9 || acc.AvailableBalance(domain.CurrencyNative) != 5 { t.Fatalf("buckets leaked: %+v", acc.Available) }
}

func TestMovementsAreRecorded(t *testing.T) {
	fx := newService()
	p := startProject(t, fx.svc, projectKey(0x49), 1)
	deposit(t, fx.svc, p, "mov-dep", 5)
	if _, err := fx.svc.Withdraw(context.Background(), actor(p.client, "mov-wd"), application.WithdrawInput{ProjectKey: p.key, Amount: 2, Currency: domain.CurrencyNative}); err != nil { t.Fatalf("Withdraw: %v", err) }
	movements, err := fx.svc.ListMovements(context.Background(), actor(p.client, "mov-list"), p.key)
	if err != nil { t.Fatalf("ListMovements: %v", err) }
	if len(movements) != 2 { t.Fatalf("expected 2 movements, got %d", len(movements)) }
	if movements[0].Kind != domain.MovementDeposit || movements[1].Kind != domain.MovementWithdraw { t.Fatalf("unexpected movement kinds: %s, %s", movements[0].Kind, movements[1].Kind) }
}
