package http

import (
	"net/http"

	"fintrack/internal/log"
)

type listMeta struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Pages int   `json:"pages"`
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request, ownerID string) {
	var req transactionRequest
	if err := DecodeJSON(r, &req); err != nil {
		s.writeError(w, r, ownerID, log.OpCreate, err, true)
		return
	}
	in, err := req.Input()
	if err != nil {
		s.writeError(w, r, ownerID, log.OpCreate, err, true)
		return
	}
	t, err := s.svc.Transactions.Create(r.Context(), ownerID, in)
	if err != nil {
		s.writeError(w, r, ownerID, log.OpCreate, err, true)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Data(t).Write(w)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request, ownerID string) {
	q, err := ParseListQuery(ownerID, r.URL.Query())
	if err != nil {
		s.writeError(w, r, ownerID, log.OpList, err, false)
		return
	}
	page, err := s.svc.Transactions.List(r.Context(), q)
	if err != nil {
		s.writeError(w, r, ownerID, log.OpList, err, false)
		return
	}
	NewJSONResponse().
		Data(page.Items).
		Meta(listMeta{Total: page.Total, Page: page.Page, Limit: page.Limit, Pages: page.Pages}).
		Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request, ownerID string) {
	t, err := s.svc.Transactions.Get(r.Context(), ownerID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, ownerID, log.OpRead, err, false)
		return
	}
	NewJSONResponse().Data(t).Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request, ownerID string) {
	var req transactionPatchRequest
	if err := DecodeJSON(r, &req); err != nil {
		s.writeError(w, r, ownerID, log.OpUpdate, err, true)
		return
	}
	patch, err := req.Patch()
	if err != nil {
		s.writeError(w, r, ownerID, log.OpUpdate, err, true)
		return
	}
	t, err := s.svc.Transactions.Update(r.Context(), ownerID, r.PathValue("id"), patch)
	if err != nil {
		s.writeError(w, r, ownerID, log.OpUpdate, err, true)
		return
	}
	NewJSONResponse().Data(t).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request, ownerID string) {
	id := r.PathValue("id")
	if err := s.svc.Transactions.Delete(r.Context(), ownerID, id); err != nil {
		s.writeError(w, r, ownerID, log.OpDelete, err, false)
		return
	}
	NewJSONResponse().Data(map[string]string{"id": id}).Write(w)
}
