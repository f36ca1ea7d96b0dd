package ledger

import (
	"math/big"
	"testing"

	"github.com/luxfi/dutch/pkg/ids"
	"github.com/stretchr/testify/require"
)

func TestMintAndBalance(t *testing.T) {
	require := require.New(t)
	l := New()

	asset := ids.GenerateTestID()
	account := ids.GenerateTestID()

	require.Equal(0, l.BalanceOf(asset, account).Sign())

	require.NoError(l.Mint(asset, account, big.NewInt(1000)))
	require.NoError(l.Mint(asset, account, big.NewInt(500)))
	require.Equal("1500", l.BalanceOf(asset, account).String())

	require.ErrorIs(l.Mint(asset, account, new(big.Int)), ErrNonPositiveAmount)
	require.ErrorIs(l.Mint(asset, account, nil), ErrNonPositiveAmount)
}

func TestTransfer(t *testing.T) {
	require := require.New(t)
	l := New()

	asset := ids.GenerateTestID()
	from := ids.GenerateTestID()
	to := ids.GenerateTestID()

	require.NoError(l.Mint(asset, from, big.NewInt(100)))
	require.NoError(l.Transfer(asset, from, to, big.NewInt(40)))
	require.Equal("60", l.BalanceOf(asset, from).String())
	require.Equal("40", l.BalanceOf(asset, to).String())

	require.ErrorIs(l.Transfer(asset, from, to, big.NewInt(61)), ErrInsufficientBalance)
	require.ErrorIs(l.Transfer(asset, to, from, big.NewInt(-1)), ErrNonPositiveAmount)

	// Unknown asset behaves like a zero balance.
	require.ErrorIs(l.Transfer(ids.GenerateTestID(), from, to, big.NewInt(1)), ErrInsufficientBalance)
}

func TestApproveAndTransferFrom(t *testing.T) {
	require := require.New(t)
	l := New()

	asset := ids.GenerateTestID()
	owner := ids.GenerateTestID()
	spender := ids.GenerateTestID()
	dest := ids.GenerateTestID()

	require.NoError(l.Mint(asset, owner, big.NewInt(100)))

	// No approval yet.
	err := l.TransferFrom(asset, spender, owner, dest, big.NewInt(10))
	require.ErrorIs(err, ErrInsufficientApproval)

	require.NoError(l.Approve(asset, owner, spender, big.NewInt(50)))
	require.Equal("50", l.Allowance(asset, owner, spender).String())

	require.NoError(l.TransferFrom(asset, spender, owner, dest, big.NewInt(30)))
	require.Equal("70", l.BalanceOf(asset, owner).String())
	require.Equal("30", l.BalanceOf(asset, dest).String())
	require.Equal("20", l.Allowance(asset, owner, spender).String())

	// Remaining allowance is short.
	err = l.TransferFrom(asset, spender, owner, dest, big.NewInt(21))
	require.ErrorIs(err, ErrInsufficientApproval)

	// Allowance covers it but the balance does not: allowance is not
	// consumed by the failed move.
	require.NoError(l.Approve(asset, owner, spender, big.NewInt(1000)))
	err = l.TransferFrom(asset, spender, owner, dest, big.NewInt(500))
	require.ErrorIs(err, ErrInsufficientBalance)
	require.Equal("1000", l.Allowance(asset, owner, spender).String())
}

func TestBalancesAreCopies(t *testing.T) {
	require := require.New(t)
	l := New()

	asset := ids.GenerateTestID()
	account := ids.GenerateTestID()
	require.NoError(l.Mint(asset, account, big.NewInt(10)))

	b := l.BalanceOf(asset, account)
	b.SetInt64(0)
	require.Equal("10", l.BalanceOf(asset, account).String())
}

func TestBigAmounts(t *testing.T) {
	require := require.New(t)
	l := New()

	asset := ids.GenerateTestID()
	a := ids.GenerateTestID()
	b := ids.GenerateTestID()

	// 3e54, the opening target of a 3e36 auction.
	huge, ok := new(big.Int).SetString("3000000000000000000000000000000000000000000000000000000", 10)
	require.True(ok)

	require.NoError(l.Mint(asset, a, huge))
	require.NoError(l.Transfer(asset, a, b, huge))
	require.Equal(0, l.BalanceOf(asset, a).Sign())
	require.Equal(huge.String(), l.BalanceOf(asset, b).String())
}
