package bank

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseStatementAmount(t *testing.T) {
	cases := map[string]float64{
		"1000":        1000,
		"$1,000.00":   1000,
		"€2,500":      2500,
		"£42.10":      42.10,
		"(1,234.56)":  -1234.56,
		" $ (500.00)": -500,
	}
	for raw, want := range cases {
		amount, err := parseStatementAmount(raw)
		require.NoError(t, err, raw)
		require.InDelta(t, want, amount.InexactFloat64(), 0.001, raw)
	}

	_, err := parseStatementAmount("not-a-number")
	require.Error(t, err)
}

func TestParseStatementDate(t *testing.T) {
	for _, raw := range []string{"2024-03-10", "10/03/2024", "10-03-2024"} {
		parsed, err := parseStatementDate(raw)
		require.NoError(t, err, raw)
		require.Equal(t, 2024, parsed.Year())
	}
	_, err := parseStatementDate("March the tenth")
	require.Error(t, err)
}

func TestImportStatement(t *testing.T) {
	repo := newMemoryRepo()
	fl := &fakeLedger{}
	svc := newTestService(repo, fl)
	account, err := svc.CreateAccount(context.Background(), CreateAccountInput{Name: "Operating", OpeningBalance: 100})
	require.NoError(t, err)

	csvData := strings.Join([]string{
		"Date,Description,Amount,Balance",
		"2024-03-01,Customer payment,\"$1,500.00\",1600.00",
		"2024-03-02,Office rent,(800.00),800.00",
		"2024-03-01,Customer payment,\"$1,500.00\",1600.00", // duplicate of row 1
		"bogus-date,Broken row,12.00,",
	}, "\n")

	result, err := svc.ImportStatement(context.Background(), account.ID, strings.NewReader(csvData), ImportOptions{
		HasHeader:         true,
		DescriptionColumn: 1,
		AmountColumn:      2,
		BalanceColumn:     3,
		Filename:          "march.csv",
	})
	require.NoError(t, err)
	require.Equal(t, 4, result.TotalRows)
	require.Equal(t, 2, result.Imported)
	require.Equal(t, 1, result.Duplicates)
	require.Equal(t, 1, result.Errors)
	require.NotNil(t, result.OpeningBalance)
	require.Equal(t, 1600.0, *result.OpeningBalance)
	require.NotNil(t, result.ClosingBalance)
	require.Equal(t, 800.0, *result.ClosingBalance)

	// Signed amounts map to type: positive credit, negative debit.
	txns, err := svc.Transactions(context.Background(), account.ID, day(2024, 3, 1), day(2024, 3, 31))
	require.NoError(t, err)
	require.Len(t, txns, 2)
	require.Equal(t, TxnCredit, txns[0].Type)
	require.Equal(t, 1500.0, txns[0].Amount)
	require.Equal(t, TxnDebit, txns[1].Type)
	require.Equal(t, 800.0, txns[1].Amount)

	require.Len(t, repo.statements, 1)
	require.Equal(t, "march.csv", repo.statements[0].Filename)
}

func TestImportStatementUnknownAccount(t *testing.T) {
	svc := newTestService(newMemoryRepo(), &fakeLedger{})
	_, err := svc.ImportStatement(context.Background(), 42, strings.NewReader(""), DefaultImportOptions())
	require.ErrorIs(t, err, ErrAccountNotFound)
}
