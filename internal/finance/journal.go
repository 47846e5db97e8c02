// Package finance posts balanced journals to the ledger. Posting runs inside
// the caller's transaction so the ledger and the source entity commit
// together.
package finance

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fixzit/fm-service/internal/domain"
	"github.com/fixzit/fm-service/internal/repository"
)

// ErrUnbalancedJournal is returned when debits and credits differ.
var ErrUnbalancedJournal = errors.New("journal does not balance")

// Ledger accounts used by payroll postings.
const (
	AccountSalaryExpense     = "6100-SALARIES-EXPENSE"
	AccountSalaryPayable     = "2100-SALARIES-PAYABLE"
	AccountDeductionsPayable = "2150-PAYROLL-DEDUCTIONS-PAYABLE"
)

// Journal is a posting request.
type Journal struct {
	OrganizationID string
	Reference      string
	SourceKind     domain.EntityKind
	SourceID       string
	Currency       string
	Lines          []domain.JournalLine
}

// Validate checks line shape and balance.
func (j Journal) Validate() error {
	if len(j.Lines) < 2 {
		return fmt.Errorf("%w: need at least two lines", ErrUnbalancedJournal)
	}
	debits, credits := decimal.Zero, decimal.Zero
	for i, line := range j.Lines {
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return fmt.Errorf("%w: line %d has a negative amount", ErrUnbalancedJournal, i)
		}
		if line.Debit.IsZero() == line.Credit.IsZero() {
			return fmt.Errorf("%w: line %d must be either debit or credit", ErrUnbalancedJournal, i)
		}
		debits = debits.Add(line.Debit)
		credits = credits.Add(line.Credit)
	}
	if !debits.Equal(credits) {
		return fmt.Errorf("%w: debits %s credits %s", ErrUnbalancedJournal, debits, credits)
	}
	return nil
}

// PayrollJournal books a run: gross salaries against net pay and withheld
// deductions.
func PayrollJournal(run *domain.PayrollRun) Journal {
	lines := []domain.JournalLine{
		{Account: AccountSalaryExpense, Debit: run.TotalGross, Memo: "gross salaries"},
		{Account: AccountSalaryPayable, Credit: run.TotalNet, Memo: "net pay"},
	}
	if run.TotalDeductions.IsPositive() {
		lines = append(lines, domain.JournalLine{Account: AccountDeductionsPayable, Credit: run.TotalDeductions, Memo: "deductions"})
	}
	return Journal{
		OrganizationID: run.OrganizationID,
		Reference:      fmt.Sprintf("PAYROLL-%s-%s", run.PeriodStart.Format("200601"), run.ID),
		SourceKind:     domain.KindPayrollRun,
		SourceID:       run.ID,
		Currency:       run.Currency,
		Lines:          lines,
	}
}

// Poster posts a balanced journal through tx and returns the journal id.
type Poster interface {
	Post(ctx context.Context, tx repository.Store, journal Journal) (string, error)
}

// LedgerPoster writes journal entries as documents. The entry id is derived
// from the source, so a second post of the same source fails with
// repository.ErrDuplicate and writes nothing. Callers inside a transaction
// must return that error rather than continue.
type LedgerPoster struct {
	entries *repository.Entities[domain.JournalEntry, *domain.JournalEntry]
}

func NewLedgerPoster() *LedgerPoster {
	return &LedgerPoster{entries: repository.NewEntities[domain.JournalEntry](domain.KindJournalEntry)}
}

// JournalID is the deterministic entry id for a source.
func JournalID(kind domain.EntityKind, sourceID string) string {
	return "je-" + string(kind) + "-" + sourceID
}

func (p *LedgerPoster) Post(ctx context.Context, tx repository.Store, journal Journal) (string, error) {
	if err := journal.Validate(); err != nil {
		return "", err
	}
	entry := &domain.JournalEntry{
		EntityHeader: domain.EntityHeader{
			ID:             JournalID(journal.SourceKind, journal.SourceID),
			OrganizationID: journal.OrganizationID,
		},
		Reference:  journal.Reference,
		SourceKind: journal.SourceKind,
		SourceID:   journal.SourceID,
		Currency:   journal.Currency,
		Lines:      journal.Lines,
		Status:     domain.JournalPosted,
	}
	err := p.entries.Create(ctx, tx, entry)
	if errors.Is(err, repository.ErrDuplicate) {
		return entry.ID, fmt.Errorf("journal %s already posted: %w", entry.ID, err)
	}
	if err != nil {
		return "", fmt.Errorf("post journal %s: %w", journal.Reference, err)
	}
	return entry.ID, nil
}

// Get loads a posted entry.
func (p *LedgerPoster) Get(ctx context.Context, store repository.Store, organizationID, id string) (*domain.JournalEntry, error) {
	return p.entries.Get(ctx, store, organizationID, id)
}
