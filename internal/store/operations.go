package store

import (
	"context"
	"errors"

	"expenses/internal/core"
	"expenses/internal/log"
	"expenses/internal/remote"
)

// Create writes draft as a new expense of the signed-in user and prepends the
// stored record to Items. A completed create resets FilteredItems to Items.
func (s *Store) Create(ctx context.Context, draft core.Draft) (core.Expense, error) {
	epoch := s.begin(true)

	userID, ok := s.session.CurrentUserID()
	if !ok {
		return core.Expense{}, s.fail(epoch, newError(KindUnauthenticated, log.OpCreate, errors.New("no signed-in user")), true)
	}
	if err := draft.Validate(); err != nil {
		return core.Expense{}, s.fail(epoch, newError(KindInvalidArgument, log.OpCreate, err), true)
	}

	id, err := s.remote.Insert(ctx, s.collection, draftDocument(draft, userID))
	if err != nil {
		return core.Expense{}, s.fail(epoch, newError(KindRemoteWriteFailed, log.OpCreate, err), true)
	}
	// Read back so createdAt carries the value the remote clock assigned.
	doc, err := s.remote.Get(ctx, s.collection, id)
	if err != nil {
		return core.Expense{}, s.fail(epoch, newError(KindRemoteWriteFailed, log.OpCreate, err), true)
	}
	created := expenseFromDocument(id, doc)

	s.commit(epoch, func(st *State) {
		items := make([]core.Expense, 0, len(st.Items)+1)
		items = append(items, created)
		items = append(items, st.Items...)
		st.Items = items
		st.FilteredItems = cloneExpenses(items)
		st.Status = StatusReady
		st.LastError = nil
	})
	s.logger.Info("Expense created",
		log.FieldOperation, log.OpCreate,
		log.FieldUserID, userID,
		log.FieldExpenseID, id,
		log.FieldCategory, string(created.Category))
	return created, nil
}

// FetchAll loads every expense of userID, newest first, and replaces both
// lists. A failed fetch leaves the lists as they were.
func (s *Store) FetchAll(ctx context.Context, userID string) ([]core.Expense, error) {
	epoch := s.begin(true)

	if userID == "" {
		return nil, s.fail(epoch, invalidArgument(log.OpFetchAll, "user id is required"), true)
	}
	snaps, err := s.remote.Query(ctx, s.collection, userQuery(userID))
	if err != nil {
		return nil, s.fail(epoch, newError(KindRemoteReadFailed, log.OpFetchAll, err), true)
	}
	items := ExpensesFromSnapshots(snaps)

	s.commit(epoch, func(st *State) {
		st.Items = cloneExpenses(items)
		st.FilteredItems = cloneExpenses(items)
		st.Status = StatusReady
		st.LastError = nil
	})
	s.logger.Debug("Expenses fetched",
		log.FieldOperation, log.OpFetchAll,
		log.FieldUserID, userID,
		log.FieldCount, len(items))
	return items, nil
}

// FilterByCategory queries the category view and replaces only FilteredItems.
// It does not touch the loading status; failures are reported via LastError.
func (s *Store) FilterByCategory(ctx context.Context, f Filter) ([]core.Expense, error) {
	epoch := s.begin(false)

	if f.UserID == "" {
		return nil, s.fail(epoch, invalidArgument(log.OpFilter, "user id is required"), false)
	}
	q := userQuery(f.UserID)
	if !f.Category.IsAll() {
		q = q.Where(core.FieldCategory, remote.OpEqual, string(f.Category))
	}
	snaps, err := s.remote.Query(ctx, s.collection, q)
	if err != nil {
		return nil, s.fail(epoch, newError(KindRemoteReadFailed, log.OpFilter, err), false)
	}
	items := ExpensesFromSnapshots(snaps)

	s.commit(epoch, func(st *State) {
		st.FilteredItems = cloneExpenses(items)
	})
	s.logger.Debug("Expenses filtered",
		log.FieldOperation, log.OpFilter,
		log.FieldUserID, f.UserID,
		log.FieldCategory, string(f.Category),
		log.FieldCount, len(items))
	return items, nil
}

// Update merges patch into the remote record. On success the matching element
// of each list is replaced by its merged copy; a list that does not hold the
// record is left alone. Ownership is enforced by the remote collection.
func (s *Store) Update(ctx context.Context, id string, patch core.Patch) (core.Expense, error) {
	epoch := s.begin(true)

	if id == "" {
		return core.Expense{}, s.fail(epoch, invalidArgument(log.OpUpdate, "expense id is required"), true)
	}
	if err := patch.Validate(); err != nil {
		return core.Expense{}, s.fail(epoch, newError(KindInvalidArgument, log.OpUpdate, err), true)
	}
	if err := s.remote.Update(ctx, s.collection, id, patchDocument(patch)); err != nil {
		return core.Expense{}, s.fail(epoch, newError(KindRemoteWriteFailed, log.OpUpdate, err), true)
	}

	merged := core.Expense{ID: id}.Apply(patch)
	s.commit(epoch, func(st *State) {
		found := false
		if e, ok := replace(st.Items, id, patch); ok {
			merged, found = e, true
		}
		if e, ok := replace(st.FilteredItems, id, patch); ok && !found {
			merged = e
		}
		st.Status = StatusReady
		st.LastError = nil
	})
	s.logger.Info("Expense updated",
		log.FieldOperation, log.OpUpdate,
		log.FieldExpenseID, id)
	return merged, nil
}

// Delete removes the remote record and every element with that id from both
// lists. Deleting a record that no longer exists succeeds.
func (s *Store) Delete(ctx context.Context, id string) error {
	epoch := s.begin(true)

	if id == "" {
		return s.fail(epoch, invalidArgument(log.OpDelete, "expense id is required"), true)
	}
	if err := s.remote.Delete(ctx, s.collection, id); err != nil {
		return s.fail(epoch, newError(KindRemoteWriteFailed, log.OpDelete, err), true)
	}

	s.commit(epoch, func(st *State) {
		st.Items = remove(st.Items, id)
		st.FilteredItems = remove(st.FilteredItems, id)
		st.Status = StatusReady
		st.LastError = nil
	})
	s.logger.Info("Expense deleted",
		log.FieldOperation, log.OpDelete,
		log.FieldExpenseID, id)
	return nil
}

// Totals sums the amounts of Items per category.
func (s *Store) Totals() []core.CategoryAmount {
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.Totals(s.state.Items)
}

func userQuery(userID string) remote.Query {
	return remote.Query{}.
		Where(core.FieldUserID, remote.OpEqual, userID).
		Order(core.FieldCreatedAt, true)
}

// replace patches every element with id in place and returns the first merged value.
func replace(items []core.Expense, id string, patch core.Patch) (core.Expense, bool) {
	var first core.Expense
	found := false
	for i := range items {
		if items[i].ID != id {
			continue
		}
		items[i] = items[i].Apply(patch)
		if !found {
			first, found = items[i], true
		}
	}
	return first, found
}

func remove(items []core.Expense, id string) []core.Expense {
	if items == nil {
		return nil
	}
	out := items[:0:0]
	for _, e := range items {
		if e.ID != id {
			out = append(out, e)
		}
	}
	return out
}
