package coa

import "time"

// AccountType enumerates chart-of-accounts categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeEquity    AccountType = "equity"
	AccountTypeRevenue   AccountType = "revenue"
	AccountTypeExpense   AccountType = "expense"
)

// BalanceSide identifies which side increases an account's balance.
type BalanceSide string

const (
	DebitSide  BalanceSide = "debit"
	CreditSide BalanceSide = "credit"
)

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// NormalBalance returns the side on which the account type grows.
// Assets and expenses are debit-normal; liabilities, equity and revenue
// are credit-normal.
func (t AccountType) NormalBalance() BalanceSide {
	if t == AccountTypeAsset || t == AccountTypeExpense {
		return DebitSide
	}
	return CreditSide
}

// Delta converts a debit/credit pair into a signed balance movement
// under the account type's sign convention.
func (t AccountType) Delta(debit, credit float64) float64 {
	if t.NormalBalance() == DebitSide {
		return debit - credit
	}
	return credit - debit
}

// Account models a chart of accounts node. Balance is mutated only by the
// ledger engine during posting.
type Account struct {
	ID        int64
	Code      string
	Name      string
	Type      AccountType
	ParentID  *int64
	Balance   float64
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
