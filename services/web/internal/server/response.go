package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"quoteshare/internal/util"
	"quoteshare/pkg/domain"
	"quoteshare/services/web/internal/app"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, e *app.Error) {
	writeJSON(w, e.Status, map[string]errorBody{"error": {Code: e.Code, Message: e.Message}})
}

// writeAppError renders client errors as-is and hides everything else
// behind internal_error.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *app.Error
	if errors.As(err, &appErr) {
		writeError(w, appErr)
		return
	}
	util.LoggerFromContext(r.Context()).Error("request failed", "err", err, "path", r.URL.Path)
	writeError(w, app.ErrInternal)
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, page string, data map[string]any) {
	if _, ok := data["Flash"]; !ok {
		data["Flash"] = s.takeFlash(w, r)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.views.Render(w, page, data); err != nil {
		writeAppError(w, r, err)
	}
}

// pageData seeds the fields every page reads.
func pageData(user domain.User, signedIn bool) map[string]any {
	data := map[string]any{"User": (*domain.User)(nil)}
	if signedIn {
		data["User"] = &user
	}
	return data
}

type apiQuote struct {
	ID          uint64  `json:"id"`
	Content     string  `json:"content"`
	Author      *string `json:"author"`
	Source      *string `json:"source"`
	Explanation *string `json:"explanation"`
	OwnerID     uint64  `json:"owner_id"`
	CreatedAt   string  `json:"created_at"`
}

func toAPIQuote(q domain.Quote) apiQuote {
	return apiQuote{
		ID:          q.ID,
		Content:     q.Content,
		Author:      q.Author,
		Source:      q.Source,
		Explanation: q.Explanation,
		OwnerID:     q.OwnerID,
		CreatedAt:   q.CreatedAt.UTC().Format("2006-01-02T15:04:05.999999"),
	}
}
