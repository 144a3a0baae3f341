package store

import (
	"expenses/internal/core"
	"expenses/internal/remote"
)

// draftDocument builds the document written on create. createdAt is left to
// the remote store's clock.
func draftDocument(d core.Draft, userID string) remote.Document {
	doc := remote.Document{
		core.FieldUserID:    userID,
		core.FieldTitle:     d.Title,
		core.FieldAmount:    d.Amount,
		core.FieldCategory:  string(d.Category),
		core.FieldNote:      d.Note,
		core.FieldCreatedAt: remote.ServerTimestamp,
	}
	if d.Date != nil {
		doc[core.FieldDate] = d.Date.UTC()
	}
	return doc
}

func patchDocument(p core.Patch) remote.Document {
	doc := remote.Document{}
	if p.Title != nil {
		doc[core.FieldTitle] = *p.Title
	}
	if p.Amount != nil {
		doc[core.FieldAmount] = *p.Amount
	}
	if p.Category != nil {
		doc[core.FieldCategory] = string(*p.Category)
	}
	if p.Note != nil {
		doc[core.FieldNote] = *p.Note
	}
	if p.Date != nil {
		doc[core.FieldDate] = p.Date.UTC()
	}
	return doc
}

// expenseFromDocument normalizes a stored document. Missing or unreadable
// timestamps become nil rather than failing the read.
func expenseFromDocument(id string, doc remote.Document) core.Expense {
	str := func(field string) string {
		s, _ := doc[field].(string)
		return s
	}
	return core.Expense{
		ID:        id,
		UserID:    str(core.FieldUserID),
		Title:     str(core.FieldTitle),
		Amount:    core.AmountFromValue(doc[core.FieldAmount]),
		Category:  core.Category(str(core.FieldCategory)),
		Note:      str(core.FieldNote),
		CreatedAt: core.NormalizeTime(doc[core.FieldCreatedAt]),
		Date:      core.NormalizeTime(doc[core.FieldDate]),
	}
}

// ExpensesFromSnapshots decodes query results into expenses, keeping their order.
func ExpensesFromSnapshots(snaps []remote.Snapshot) []core.Expense {
	out := make([]core.Expense, len(snaps))
	for i, s := range snaps {
		out[i] = expenseFromDocument(s.ID, s.Data)
	}
	return out
}
