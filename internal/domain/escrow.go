package domain

import (
	"math"
	"time"
)

// CurrencyNative identifies the substrate's native currency. Any other
// currency string is treated as a fungible-token contract identifier.
const CurrencyNative = "native"

const (
	MovementDeposit    = "deposit"
	MovementWithdraw   = "withdraw"
	MovementBlock      = "block"
	MovementUnblock    = "unblock"
	MovementDistribute = "distribute"
)

// EscrowAccount is the fund-custody record for one agreement. The owner may
// withdraw available funds; the single operator fixed at initialization is
// the only identity allowed to block, unblock, or distribute. All amounts
// are integers in the currency's smallest unit.
type EscrowAccount struct {
	EscrowID    string
	ProjectKey  string
	Owner       string
	Operator    string
	Initialized bool
	Available   map[string]int64
	Blocked     map[string]int64
	Allowances  map[string]map[string]int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func NewEscrowAccount(escrowID, projectKey string, at time.Time) EscrowAccount {
	return EscrowAccount{
		EscrowID:   escrowID,
		ProjectKey: projectKey,
		Available:  map[string]int64{},
		Blocked:    map[string]int64{},
		Allowances: map[string]map[string]int64{},
		CreatedAt:  at,
		UpdatedAt:  at,
	}
}

func (a *EscrowAccount) Initialize(owner, operator string, at time.Time) error {
	if a.Initialized {
		return ErrAlreadyInitialized
	}
	if owner == "" || operator == "" {
		return ErrInvalidInput
	}
	a.Owner = owner
	a.Operator = operator
	a.Initialized = true
	a.UpdatedAt = at
	return nil
}

func (a *EscrowAccount) Deposit(amount int64, currency string, at time.Time) error {
	if !a.Initialized {
		return ErrNotInitialized
	}
	if amount <= 0 || currency == "" {
		return ErrInvalidInput
	}
	next, err := addChecked(a.Available[currency], amount)
	if err != nil {
		return err
	}
	a.Available[currency] = next
	a.UpdatedAt = at
	return nil
}

// Withdraw moves funds out of custody. The owner withdraws freely up to the
// available balance; any other caller consumes its standing withdrawal
// allowance, previously earmarked by a distribution.
func (a *EscrowAccount) Withdraw(caller string, amount int64, currency string, at time.Time) error {
	if !a.Initialized {
		return ErrNotInitialized
	}
	if amount <= 0 || currency == "" || caller == "" {
		return ErrInvalidInput
	}
	if caller == a.Owner {
		if a.Available[currency] < amount {
			return ErrInsufficientAvailable
		}
		a.Available[currency] -= amount
		a.UpdatedAt = at
		return nil
	}
	granted := a.Allowances[caller][currency]
	if granted < amount {
		return ErrInsufficientAllowance
	}
	a.Allowances[caller][currency] = granted - amount
	a.UpdatedAt = at
	return nil
}

func (a *EscrowAccount) Block(caller string, amount int64, currency string, at time.Time) error {
	if err := a.requireOperator(caller, amount, currency); err != nil {
		return err
	}
	if a.Available[currency] < amount {
		return ErrInsufficientAvailable
	}
	next, err := addChecked(a.Blocked[currency], amount)
	if err != nil {
		return err
	}
	a.Available[currency] -= amount
	a.Blocked[currency] = next
	a.UpdatedAt = at
	return nil
}

func (a *EscrowAccount) Unblock(caller string, amount int64, currency string, at time.Time) error {
	if err := a.requireOperator(caller, amount, currency); err != nil {
		return err
	}
	if a.Blocked[currency] < amount {
		return ErrInsufficientBlocked
	}
	next, err := addChecked(a.Available[currency], amount)
	if err != nil {
		return err
	}
	a.Blocked[currency] -= amount
	a.Available[currency] = next
	a.UpdatedAt = at
	return nil
}

// Distribute pays out blocked funds. A distribution to the owner returns the
// funds to the available pool; any other target is credited a withdrawal
// allowance and must pull the funds with Withdraw. The allowance indirection
// is deliberate and must not be collapsed into a direct transfer.
func (a *EscrowAccount) Distribute(caller, target string, amount int64, currency string, at time.Time) error {
	if err := a.requireOperator(caller, amount, currency); err != nil {
		return err
	}
	if target == "" {
		return ErrInvalidInput
	}
	if a.Blocked[currency] < amount {
		return ErrInsufficientBlocked
	}
	if target == a.Owner {
		next, err := addChecked(a.Available[currency], amount)
		if err != nil {
			return err
		}
		a.Blocked[currency] -= amount
		a.Available[currency] = next
		a.UpdatedAt = at
		return nil
	}
	nextAllow, err := addChecked(a.Allowances[target][currency], amount)
	if err != nil {
		return err
	}
	if a.Allowances[target] == nil {
		a.Allowances[target] = map[string]int64{}
	}
	a.Blocked[currency] -= amount
	a.Allowances[target][currency] = nextAllow
	a.UpdatedAt = at
	return nil
}

func (a *EscrowAccount) requireOperator(caller string, amount int64, currency string) error {
	if !a.Initialized {
		return ErrNotInitialized
	}
	if caller != a.Operator {
		return ErrForbidden
	}
	if amount <= 0 || currency == "" {
		return ErrInvalidInput
	}
	return nil
}

func (a *EscrowAccount) AvailableBalance(currency string) int64 { return a.Available[currency] }
func (a *EscrowAccount) BlockedBalance(currency string) int64   { return a.Blocked[currency] }

func (a *EscrowAccount) AllowanceOf(address, currency string) int64 {
	return a.Allowances[address][currency]
}

// Clone deep-copies the account so callers can mutate a working copy and
// persist it only after every precondition passed.
func (a EscrowAccount) Clone() EscrowAccount {
	out := a
	out.Available = make(map[string]int64, len(a.Available))
	for k, v := range a.Available {
		out.Available[k] = v
	}
	out.Blocked = make(map[string]int64, len(a.Blocked))
	for k, v := range a.Blocked {
		out.Blocked[k] = v
	}
	out.Allowances = make(map[string]map[string]int64, len(a.Allowances))
	for addr, byCur := range a.Allowances {
		cp := make(map[string]int64, len(byCur))
		for k, v := range byCur {
			cp[k] = v
		}
		out.Allowances[addr] = cp
	}
	return out
}

func addChecked(a, b int64) (int64, error) {
	if b > 0 && a > math.MaxInt64-b {
		return 0, ErrAmountOverflow
	}
	return a + b, nil
}

// Movement is the auditable record appended for every balance-affecting
// escrow operation.
type Movement struct {
	MovementID string
	EscrowID   string
	ProjectKey string
	Kind       string
	Sender     string
	Target     string
	Amount     int64
	Currency   string
	OccurredAt time.Time
}
