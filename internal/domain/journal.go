package domain

import "github.com/shopspring/decimal"

// JournalStatus enumerates ledger entry states. Entries are written posted.
type JournalStatus string

const JournalPosted JournalStatus = "POSTED"

// JournalLine is one side of a double-entry posting. Exactly one of Debit and
// Credit is non-zero.
type JournalLine struct {
	Account string          `json:"account"`
	Debit   decimal.Decimal `json:"debit"`
	Credit  decimal.Decimal `json:"credit"`
	Memo    string          `json:"memo,omitempty"`
}

// JournalEntry is a balanced ledger posting produced by a source aggregate.
type JournalEntry struct {
	EntityHeader
	Reference  string        `json:"reference"`
	SourceKind EntityKind    `json:"source_kind"`
	SourceID   string        `json:"source_id"`
	Currency   string        `json:"currency"`
	Lines      []JournalLine `json:"lines"`
	Status     JournalStatus `json:"status"`
}

func (j *JournalEntry) Kind() EntityKind    { return KindJournalEntry }
func (j *JournalEntry) StatusValue() string { return string(j.Status) }
