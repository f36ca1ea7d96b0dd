package ledger

import (
	"errors"
	"math/big"
	"sync"

	"github.com/luxfi/dutch/pkg/ids"
)

var (
	ErrNonPositiveAmount    = errors.New("amount must be positive")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrInsufficientApproval = errors.New("insufficient approval")
)

// Ledger is a minimal in-memory multi-asset balance book with ERC20-style
// approvals. It backs local and test deployments; the auction core only
// sees the narrow transfer/balance interface.
type Ledger struct {
	mu         sync.Mutex
	balances   map[ids.ID]map[ids.ID]*big.Int            // asset -> account -> balance
	allowances map[ids.ID]map[ids.ID]map[ids.ID]*big.Int // asset -> owner -> spender -> allowance
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{
		balances:   make(map[ids.ID]map[ids.ID]*big.Int),
		allowances: make(map[ids.ID]map[ids.ID]map[ids.ID]*big.Int),
	}
}

// Mint credits newly issued units of asset to an account.
func (l *Ledger) Mint(asset, account ids.ID, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrNonPositiveAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.credit(asset, account, amount)
	return nil
}

// Transfer moves amount of asset between accounts.
func (l *Ledger) Transfer(asset, from, to ids.ID, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrNonPositiveAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.move(asset, from, to, amount)
}

// Approve grants spender the right to move up to amount of owner's asset.
// A fresh approval replaces any previous one.
func (l *Ledger) Approve(asset, owner, spender ids.ID, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrNonPositiveAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	owners := l.allowances[asset]
	if owners == nil {
		owners = make(map[ids.ID]map[ids.ID]*big.Int)
		l.allowances[asset] = owners
	}
	spenders := owners[owner]
	if spenders == nil {
		spenders = make(map[ids.ID]*big.Int)
		owners[owner] = spenders
	}
	spenders[spender] = new(big.Int).Set(amount)
	return nil
}

// Allowance returns what spender may still move on owner's behalf.
func (l *Ledger) Allowance(asset, owner, spender ids.ID) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if a := l.allowance(asset, owner, spender); a != nil {
		return new(big.Int).Set(a)
	}
	return new(big.Int)
}

// TransferFrom moves amount of owner's asset to the destination account,
// consuming spender's allowance. The whole operation fails without effect
// when either the allowance or the balance is short.
func (l *Ledger) TransferFrom(asset, spender, owner, to ids.ID, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrNonPositiveAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	allowed := l.allowance(asset, owner, spender)
	if allowed == nil || allowed.Cmp(amount) < 0 {
		return ErrInsufficientApproval
	}
	if err := l.move(asset, owner, to, amount); err != nil {
		return err
	}
	allowed.Sub(allowed, amount)
	return nil
}

// BalanceOf returns the balance of account in asset.
func (l *Ledger) BalanceOf(asset, account ids.ID) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if accounts := l.balances[asset]; accounts != nil {
		if b := accounts[account]; b != nil {
			return new(big.Int).Set(b)
		}
	}
	return new(big.Int)
}

func (l *Ledger) move(asset, from, to ids.ID, amount *big.Int) error {
	accounts := l.balances[asset]
	if accounts == nil {
		return ErrInsufficientBalance
	}
	fromBalance := accounts[from]
	if fromBalance == nil || fromBalance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	fromBalance.Sub(fromBalance, amount)
	l.credit(asset, to, amount)
	return nil
}

func (l *Ledger) credit(asset, account ids.ID, amount *big.Int) {
	accounts := l.balances[asset]
	if accounts == nil {
		accounts = make(map[ids.ID]*big.Int)
		l.balances[asset] = accounts
	}
	balance := accounts[account]
	if balance == nil {
		balance = new(big.Int)
		accounts[account] = balance
	}
	balance.Add(balance, amount)
}

func (l *Ledger) allowance(asset, owner, spender ids.ID) *big.Int {
	if owners := l.allowances[asset]; owners != nil {
		if spenders := owners[owner]; spenders != nil {
			return spenders[spender]
		}
	}
	return nil
}
