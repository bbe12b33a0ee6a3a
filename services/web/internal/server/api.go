package server

import (
	"net/http"
	"strings"

	"quoteshare/internal/util"
	"quoteshare/pkg/domain"
	"quoteshare/services/web/internal/app"
)

type meResponse struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type quoteListResponse struct {
	Items []apiQuote `json:"items"`
	Page  int        `json:"page"`
	Total int64      `json:"total"`
}

func (s *Server) handleAPIMe(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(r)
	if !ok {
		writeError(w, app.ErrUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, meResponse{ID: user.ID, Username: user.Username, Email: user.Email})
}

func (s *Server) handleAPIDeleteMe(w http.ResponseWriter, r *http.Request, user domain.User) {
	token, _ := s.sessionToken(r)
	if err := s.app.DeleteAccount(r.Context(), user, token); err != nil {
		s.audit(r, "web.account.delete", "fail", "user_id", user.ID, "reason", errorCode(err))
		writeAppError(w, r, err)
		return
	}
	s.clearSessionCookie(w)
	s.audit(r, "web.account.delete", "success", "user_id", user.ID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
}

func (s *Server) handleAPIListQuotes(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := domain.QuoteFilter{
		Keyword: strings.TrimSpace(query.Get("q")),
		Author:  strings.TrimSpace(query.Get("author")),
		Source:  strings.TrimSpace(query.Get("source")),
	}
	result, err := s.app.ListQuotes(r.Context(), filter, pageParam(r))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	items := make([]apiQuote, 0, len(result.Items))
	for _, q := range result.Items {
		items = append(items, toAPIQuote(q))
	}
	writeJSON(w, http.StatusOK, quoteListResponse{Items: items, Page: result.Page, Total: result.Total})
}

func (s *Server) handleAPIGetQuote(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, app.ErrNotFound)
		return
	}
	q, err := s.app.GetQuote(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAPIQuote(q))
}

func (s *Server) handleAPICreateQuote(w http.ResponseWriter, r *http.Request, user domain.User) {
	form, err := readForm(w, r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	q, err := s.app.CreateQuote(r.Context(), user, form.quoteInput())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": q.ID, "message": "created"})
}

func (s *Server) handleAPIUpdateQuote(w http.ResponseWriter, r *http.Request, user domain.User) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, app.ErrNotFound)
		return
	}
	form, err := readForm(w, r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if _, err := s.app.UpdateQuote(r.Context(), user, id, form.quoteInput()); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "updated"})
}

func (s *Server) handleAPIDeleteQuote(w http.ResponseWriter, r *http.Request, user domain.User) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, app.ErrNotFound)
		return
	}
	if err := s.app.DeleteQuote(r.Context(), user, id); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
}

func (s *Server) handleAPIReact(w http.ResponseWriter, r *http.Request, user domain.User) {
	_, state, ok := s.toggle(w, r, user)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": string(state)})
}

func (s *Server) handleExplanation(w http.ResponseWriter, r *http.Request, user domain.User) {
	form, err := readForm(w, r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	text, err := s.app.GenerateExplanation(r.Context(), form.get("content"), form.get("prompt"))
	if err != nil {
		s.metrics.Explanation(errorCode(err))
		writeAppError(w, r, err)
		return
	}
	s.metrics.Explanation("success")
	util.LoggerFromContext(r.Context()).Info("explanation generated", "user_id", user.ID, "chars", len([]rune(text)))
	writeJSON(w, http.StatusOK, map[string]string{"explanation": text})
}
