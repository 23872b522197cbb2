package coa

import "fmt"

// Role names a semantic slot in the chart of accounts. Producer services
// post against roles instead of hard-coded account codes so the ledger core
// stays decoupled from the chart layout.
type Role string

const (
	RoleCashOnHand         Role = "cash_on_hand"
	RoleBankAccount        Role = "bank_account"
	RoleAccountsReceivable Role = "accounts_receivable"
	RoleRetainedEarnings   Role = "retained_earnings"
	RoleTaxPayable         Role = "tax_payable"
	RoleServiceRevenue     Role = "service_revenue"
	RoleOtherRevenue       Role = "other_revenue"
	RoleOtherExpenses      Role = "other_expenses"
)

// RoleMap binds semantic roles to account codes.
type RoleMap map[Role]string

// DefaultRoles returns the role bindings for the stock chart of accounts.
func DefaultRoles() RoleMap {
	return RoleMap{
		RoleCashOnHand:         "1110",
		RoleBankAccount:        "1120",
		RoleAccountsReceivable: "1140",
		RoleRetainedEarnings:   "3200",
		RoleTaxPayable:         "2140",
		RoleServiceRevenue:     "4110",
		RoleOtherRevenue:       "4200",
		RoleOtherExpenses:      "6600",
	}
}

// Code resolves a role to its account code.
func (m RoleMap) Code(role Role) (string, error) {
	code, ok := m[role]
	if !ok || code == "" {
		return "", fmt.Errorf("coa: no account mapped for role %q", role)
	}
	return code, nil
}
