package server

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"quoteshare/pkg/domain"
	"quoteshare/services/web/internal/app"
	"quoteshare/services/web/internal/view"
)

func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.currentUser(r); ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.render(w, r, view.PageRegister, pageData(domain.User{}, false))
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if !s.allowRate(w, r, s.registerLimiter) {
		s.audit(r, "web.register", "rate_limited")
		s.metrics.AuthEvent("register", "rate_limited")
		return
	}
	form, err := readForm(w, r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	user, err := s.app.Register(r.Context(), form.get("username"), form.get("email"), form.get("password"))
	if err != nil {
		s.audit(r, "web.register", "fail", "reason", errorCode(err))
		s.metrics.AuthEvent("register", "fail")
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "web.register", "success", "user_id", user.ID)
	s.metrics.AuthEvent("register", "success")
	s.redirectWithFlash(w, r, "/login", "Registration successful. Please login.")
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.currentUser(r); ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.render(w, r, view.PageLogin, pageData(domain.User{}, false))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.allowRate(w, r, s.loginLimiter) {
		s.audit(r, "web.login", "rate_limited")
		s.metrics.AuthEvent("login", "rate_limited")
		return
	}
	form, err := readForm(w, r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	user, token, err := s.app.Authenticate(r.Context(), form.get("username_or_email"), form.get("password"))
	if err != nil {
		s.audit(r, "web.login", "fail", "reason", errorCode(err))
		s.metrics.AuthEvent("login", "fail")
		writeAppError(w, r, err)
		return
	}
	if err := s.setSessionCookie(w, token); err != nil {
		_ = s.app.Logout(r.Context(), token)
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "web.login", "success", "user_id", user.ID)
	s.metrics.AuthEvent("login", "success")
	s.redirectWithFlash(w, r, "/", "Welcome back!")
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token, ok := s.sessionToken(r); ok {
		if err := s.app.Logout(r.Context(), token); err != nil {
			s.audit(r, "web.logout", "fail", "reason", "session_store")
			writeAppError(w, r, err)
			return
		}
	}
	s.clearSessionCookie(w)
	s.audit(r, "web.logout", "success")
	s.metrics.AuthEvent("logout", "success")
	s.redirectWithFlash(w, r, "/", "Logged out.")
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	user, signedIn := s.currentUser(r)
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
	reactions := map[uint64]app.ReactionSet{}
	if signedIn {
		if reactions, err = s.app.ReactionsFor(r.Context(), user, quoteIDs(result.Items)); err != nil {
			writeAppError(w, r, err)
			return
		}
	}
	data := pageData(user, signedIn)
	data["Quotes"] = result.Items
	data["Reactions"] = reactions
	data["Keyword"] = filter.Keyword
	data["Author"] = filter.Author
	data["Source"] = filter.Source
	data["Page"] = result.Page
	data["Pages"] = result.Pages()
	data["Total"] = result.Total
	data["PrevURL"] = pageURL(r.URL, result.Page-1)
	data["NextURL"] = pageURL(r.URL, result.Page+1)
	s.render(w, r, view.PageIndex, data)
}

func (s *Server) handleNewQuotePage(w http.ResponseWriter, r *http.Request, user domain.User) {
	data := pageData(user, true)
	data["Quote"] = (*domain.Quote)(nil)
	data["ExplanationsEnabled"] = s.app.ExplanationsEnabled()
	s.render(w, r, view.PageQuoteForm, data)
}

func (s *Server) handleCreateQuote(w http.ResponseWriter, r *http.Request, user domain.User) {
	form, err := readForm(w, r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if _, err := s.app.CreateQuote(r.Context(), user, form.quoteInput()); err != nil {
		writeAppError(w, r, err)
		return
	}
	s.redirectWithFlash(w, r, "/me/quotes", "Quote added.")
}

func (s *Server) handleQuoteDetail(w http.ResponseWriter, r *http.Request) {
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
	user, signedIn := s.currentUser(r)
	reactions := app.ReactionSet{}
	if signedIn {
		sets, err := s.app.ReactionsFor(r.Context(), user, []uint64{q.ID})
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		if set, ok := sets[q.ID]; ok {
			reactions = set
		}
	}
	shareURL := absoluteURL(r)
	data := pageData(user, signedIn)
	data["Quote"] = q
	data["Reactions"] = reactions
	data["IsOwner"] = signedIn && q.OwnerID == user.ID
	data["ShareURL"] = shareURL
	data["MetaDescription"] = metaDescription(q)
	data["OGTitle"] = ogTitle(q)
	data["OGDescription"] = q.Content
	s.render(w, r, view.PageQuoteDetail, data)
}

func (s *Server) handleEditQuotePage(w http.ResponseWriter, r *http.Request, user domain.User) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, app.ErrNotFound)
		return
	}
	q, err := s.app.EditableQuote(r.Context(), user, id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	data := pageData(user, true)
	data["Quote"] = &q
	data["ExplanationsEnabled"] = s.app.ExplanationsEnabled()
	s.render(w, r, view.PageQuoteForm, data)
}

func (s *Server) handleUpdateQuote(w http.ResponseWriter, r *http.Request, user domain.User) {
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
	s.redirectWithFlash(w, r, "/quotes/"+strconv.FormatUint(id, 10), "Quote updated.")
}

func (s *Server) handleDeleteQuote(w http.ResponseWriter, r *http.Request, user domain.User) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, app.ErrNotFound)
		return
	}
	if err := s.app.DeleteQuote(r.Context(), user, id); err != nil {
		writeAppError(w, r, err)
		return
	}
	s.redirectWithFlash(w, r, "/me/quotes", "Quote deleted.")
}

func (s *Server) handleReact(w http.ResponseWriter, r *http.Request, user domain.User) {
	rt, state, ok := s.toggle(w, r, user)
	if !ok {
		return
	}
	message := "Added"
	if state == domain.ReactionRemoved {
		message = "Removed"
	}
	if strings.HasPrefix(r.Header.Get("Accept"), "application/json") {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": message})
		return
	}
	label := string(rt)
	label = strings.ToUpper(label[:1]) + label[1:]
	s.redirectWithFlash(w, r, backTarget(r), label+" "+strings.ToLower(message))
}

// toggle parses and applies a reaction, writing the error response itself.
func (s *Server) toggle(w http.ResponseWriter, r *http.Request, user domain.User) (domain.ReactionType, domain.ReactionState, bool) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, app.ErrNotFound)
		return "", "", false
	}
	form, err := readForm(w, r)
	if err != nil {
		writeAppError(w, r, err)
		return "", "", false
	}
	rt, state, err := s.app.ToggleReaction(r.Context(), user, id, form.get("reaction_type"))
	if err != nil {
		writeAppError(w, r, err)
		return "", "", false
	}
	s.metrics.Reaction(string(rt), string(state))
	return rt, state, true
}

func (s *Server) handleMyQuotes(w http.ResponseWriter, r *http.Request, user domain.User) {
	result, err := s.app.MyQuotes(r.Context(), user, pageParam(r))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	data := pageData(user, true)
	data["Quotes"] = result.Items
	data["Page"] = result.Page
	data["Pages"] = result.Pages()
	s.render(w, r, view.PageMyQuotes, data)
}

func (s *Server) handleMyReactions(reaction domain.ReactionType, title string) authHandler {
	return func(w http.ResponseWriter, r *http.Request, user domain.User) {
		result, err := s.app.ReactedQuotes(r.Context(), user, reaction, pageParam(r))
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		data := pageData(user, true)
		data["Title"] = title
		data["Quotes"] = result.Items
		data["Page"] = result.Page
		data["Pages"] = result.Pages()
		s.render(w, r, view.PageMyReactions, data)
	}
}

func quoteIDs(quotes []domain.Quote) []uint64 {
	ids := make([]uint64, 0, len(quotes))
	for _, q := range quotes {
		ids = append(ids, q.ID)
	}
	return ids
}

// pageURL keeps the current query and swaps the page number.
func pageURL(u *url.URL, page int) string {
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	return u.Path + "?" + q.Encode()
}

func absoluteURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

func metaDescription(q domain.Quote) string {
	if q.Explanation != nil {
		return *q.Explanation
	}
	runes := []rune(q.Content)
	if len(runes) > 150 {
		runes = runes[:150]
	}
	return string(runes)
}

func ogTitle(q domain.Quote) string {
	if q.Author != nil {
		return *q.Author
	}
	return "Quote"
}

func errorCode(err error) string {
	var appErr *app.Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return "internal"
}
