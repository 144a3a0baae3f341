package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"expenses/internal/core"
	"expenses/internal/identity"
	"expenses/internal/log"
	"expenses/internal/remote"
	"expenses/internal/remote/rest"
)

const maxBodyBytes = 1 << 20

// Every document carries its owner in this field; the rules below only let a
// caller touch documents they own.
const ownerField = core.FieldUserID

func ownedBy(doc remote.Document, p identity.Principal) bool {
	owner, _ := doc[ownerField].(string)
	return owner != "" && owner == p.UserID
}

// scopedTo reports whether q can only match documents owned by p.
func scopedTo(q remote.Query, p identity.Principal) bool {
	v, ok := q.EqualityValue(ownerField)
	owner, _ := v.(string)
	return ok && owner == p.UserID
}

func readDocument(r *http.Request) (remote.Document, error) {
	b, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	return remote.DecodeDocument(b)
}

func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	coll := chi.URLParam(r, "collection")

	doc, err := readDocument(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid document")
		return
	}
	if !ownedBy(doc, p) {
		writeError(w, http.StatusForbidden, remote.ErrPermissionDenied.Error())
		return
	}

	id, err := s.docs.Insert(r.Context(), coll, doc)
	if err != nil {
		log.FromContext(r.Context()).Failure(r.Context(), "Insert failed", err, log.FieldCollection, coll)
		writeRemoteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rest.InsertResponse{ID: id})
}

// loadOwned fetches a document and checks the caller owns it. It writes the
// error response itself and returns ok=false when the request must stop.
func (s *Server) loadOwned(w http.ResponseWriter, r *http.Request, coll, id string) (remote.Document, bool) {
	p, _ := PrincipalFrom(r.Context())
	doc, err := s.docs.Get(r.Context(), coll, id)
	if err != nil {
		if !errors.Is(err, remote.ErrNotFound) {
			log.FromContext(r.Context()).Failure(r.Context(), "Get failed", err, log.FieldCollection, coll)
		}
		writeRemoteError(w, err)
		return nil, false
	}
	if !ownedBy(doc, p) {
		writeError(w, http.StatusForbidden, remote.ErrPermissionDenied.Error())
		return nil, false
	}
	return doc, true
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	coll, id := chi.URLParam(r, "collection"), chi.URLParam(r, "id")
	doc, ok := s.loadOwned(w, r, coll, id)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, remote.Snapshot{ID: id, Data: doc})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	coll, id := chi.URLParam(r, "collection"), chi.URLParam(r, "id")

	patch, err := readDocument(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid document")
		return
	}
	if _, moves := patch[ownerField]; moves && !ownedBy(patch, p) {
		writeError(w, http.StatusForbidden, remote.ErrPermissionDenied.Error())
		return
	}
	if _, ok := s.loadOwned(w, r, coll, id); !ok {
		return
	}

	if err := s.docs.Update(r.Context(), coll, id, patch); err != nil {
		log.FromContext(r.Context()).Failure(r.Context(), "Update failed", err,
			log.FieldCollection, coll, log.FieldExpenseID, id)
		writeRemoteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	coll, id := chi.URLParam(r, "collection"), chi.URLParam(r, "id")

	doc, err := s.docs.Get(r.Context(), coll, id)
	switch {
	case errors.Is(err, remote.ErrNotFound):
		w.WriteHeader(http.StatusNoContent)
		return
	case err != nil:
		log.FromContext(r.Context()).Failure(r.Context(), "Get failed", err, log.FieldCollection, coll)
		writeRemoteError(w, err)
		return
	case !ownedBy(doc, p):
		writeError(w, http.StatusForbidden, remote.ErrPermissionDenied.Error())
		return
	}

	if err := s.docs.Delete(r.Context(), coll, id); err != nil {
		log.FromContext(r.Context()).Failure(r.Context(), "Delete failed", err,
			log.FieldCollection, coll, log.FieldExpenseID, id)
		writeRemoteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	coll := chi.URLParam(r, "collection")

	var q remote.Query
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&q); err != nil {
		writeError(w, http.StatusBadRequest, "invalid query")
		return
	}
	if err := q.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !scopedTo(q, p) {
		writeError(w, http.StatusForbidden, remote.ErrPermissionDenied.Error())
		return
	}

	snaps, err := s.docs.Query(r.Context(), coll, q)
	if err != nil {
		log.FromContext(r.Context()).Failure(r.Context(), "Query failed", err, log.FieldCollection, coll)
		writeRemoteError(w, err)
		return
	}
	if snaps == nil {
		snaps = []remote.Snapshot{}
	}
	writeJSON(w, http.StatusOK, rest.QueryResponse{Documents: snaps})
}
