package bank

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ImportOptions controls CSV statement parsing. Column indexes are zero-based
// and default to the common date/description/amount/balance layout.
type ImportOptions struct {
	HasHeader         bool
	DateColumn        int
	DescriptionColumn int
	AmountColumn      int
	BalanceColumn     int
	StatementDate     time.Time
	Filename          string
}

// DefaultImportOptions returns the standard four-column layout with a header.
func DefaultImportOptions() ImportOptions {
	return ImportOptions{
		HasHeader:         true,
		DateColumn:        0,
		DescriptionColumn: 1,
		AmountColumn:      2,
		BalanceColumn:     3,
	}
}

// ImportResult summarizes one statement import.
type ImportResult struct {
	TotalRows      int      `json:"total_rows"`
	Imported       int      `json:"imported"`
	Duplicates     int      `json:"duplicates"`
	Errors         int      `json:"errors"`
	OpeningBalance *float64 `json:"opening_balance,omitempty"`
	ClosingBalance *float64 `json:"closing_balance,omitempty"`
}

var importDateFormats = []string{
	"2006-01-02",
	"02/01/2006",
	"01/02/2006",
	"02-01-2006",
	"01-02-2006",
}

// ImportStatement parses CSV rows into bank transactions. Rows whose
// account/date/amount/description already exist are skipped as duplicates;
// rows that fail to parse are counted and logged without aborting the import.
// A statement header row is recorded at the end.
func (s *Service) ImportStatement(ctx context.Context, accountID int64, r io.Reader, opts ImportOptions) (ImportResult, error) {
	if _, err := s.repo.GetAccount(ctx, accountID); err != nil {
		return ImportResult{}, err
	}
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	if opts.HasHeader {
		if _, err := reader.Read(); err != nil && !errors.Is(err, io.EOF) {
			return ImportResult{}, fmt.Errorf("bank: read statement header: %w", err)
		}
	}

	var result ImportResult
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			result.TotalRows++
			result.Errors++
			s.logger.Error("statement row unreadable", slog.Any("error", err))
			continue
		}
		result.TotalRows++
		if err := s.importRow(ctx, accountID, row, opts, &result); err != nil {
			result.Errors++
			s.logger.Error("statement row import", slog.Int("row", result.TotalRows), slog.Any("error", err))
		}
	}

	statementDate := opts.StatementDate
	if statementDate.IsZero() {
		statementDate = s.now()
	}
	_, err := s.repo.CreateStatement(ctx, Statement{
		AccountID:      accountID,
		Date:           statementDate,
		OpeningBalance: result.OpeningBalance,
		ClosingBalance: result.ClosingBalance,
		Filename:       opts.Filename,
	})
	if err != nil {
		return result, err
	}
	s.logger.Info("statement imported",
		slog.Int64("account_id", accountID),
		slog.Int("imported", result.Imported),
		slog.Int("duplicates", result.Duplicates),
		slog.Int("errors", result.Errors))
	return result, nil
}

func (s *Service) importRow(ctx context.Context, accountID int64, row []string, opts ImportOptions, result *ImportResult) error {
	if len(row) <= opts.DateColumn || len(row) <= opts.DescriptionColumn || len(row) <= opts.AmountColumn {
		return fmt.Errorf("bank: row has %d columns", len(row))
	}
	date, err := parseStatementDate(row[opts.DateColumn])
	if err != nil {
		return err
	}
	description := strings.TrimSpace(row[opts.DescriptionColumn])
	amount, err := parseStatementAmount(row[opts.AmountColumn])
	if err != nil {
		return err
	}
	txnType := TxnCredit
	if amount.IsNegative() {
		txnType = TxnDebit
		amount = amount.Neg()
	}

	_, err = s.RecordTransaction(ctx, TransactionInput{
		AccountID:    accountID,
		Date:         date,
		Type:         txnType,
		Amount:       amount.InexactFloat64(),
		Description:  description,
		StatementRef: strconv.Itoa(result.TotalRows),
		SourceType:   "import",
	})
	if errors.Is(err, ErrDuplicate) {
		result.Duplicates++
		return nil
	}
	if err != nil {
		return err
	}
	result.Imported++

	if len(row) > opts.BalanceColumn && strings.TrimSpace(row[opts.BalanceColumn]) != "" {
		if balance, err := parseStatementAmount(row[opts.BalanceColumn]); err == nil {
			v := balance.InexactFloat64()
			if result.OpeningBalance == nil {
				result.OpeningBalance = &v
			}
			result.ClosingBalance = &v
		}
	}
	return nil
}

func parseStatementDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, format := range importDateFormats {
		if t, err := time.Parse(format, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("bank: unable to parse date %q", raw)
}

// parseStatementAmount strips currency symbols and thousand separators and
// treats a parenthesized value as negative.
func parseStatementAmount(raw string) (decimal.Decimal, error) {
	cleaned := strings.NewReplacer("$", "", "€", "", "£", "", " ", "", ",", "").Replace(strings.TrimSpace(raw))
	if strings.Contains(cleaned, "(") {
		cleaned = "-" + strings.NewReplacer("(", "", ")", "").Replace(cleaned)
	}
	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("bank: unable to parse amount %q", raw)
	}
	return amount, nil
}
