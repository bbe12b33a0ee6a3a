package server

import (
	"net/http"
	"net/url"
	"strings"
)

const (
	sessionCookieName = "session"
	flashCookieName   = "flash"
	flashMaxAge       = 5
)

// sessionToken returns the opaque session token carried by a valid signed
// cookie. Tampered or expired cookies read as absent.
func (s *Server) sessionToken(r *http.Request) (string, bool) {
	c, err := r.Cookie(sessionCookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	token, err := s.cookies.Verify(c.Value)
	if err != nil {
		return "", false
	}
	return token, true
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string) error {
	value, err := s.cookies.Sign(token)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   sessionCookieMaxAge(s.cookies.TTL()),
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// redirectWithFlash answers 303 to target, leaving msg for the next page.
func (s *Server) redirectWithFlash(w http.ResponseWriter, r *http.Request, target, msg string) {
	if msg != "" {
		http.SetCookie(w, &http.Cookie{
			Name:     flashCookieName,
			Value:    url.QueryEscape(msg),
			Path:     "/",
			MaxAge:   flashMaxAge,
			HttpOnly: true,
			Secure:   s.cookieSecure,
			SameSite: http.SameSiteLaxMode,
		})
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// takeFlash reads the flash message and expires it so it renders once.
func (s *Server) takeFlash(w http.ResponseWriter, r *http.Request) string {
	c, err := r.Cookie(flashCookieName)
	if err != nil || c.Value == "" {
		return ""
	}
	http.SetCookie(w, &http.Cookie{Name: flashCookieName, Value: "", Path: "/", MaxAge: -1})
	msg, err := url.QueryUnescape(c.Value)
	if err != nil {
		return ""
	}
	return msg
}

// backTarget turns a Referer into a same-site redirect target.
func backTarget(r *http.Request) string {
	ref := strings.TrimSpace(r.Referer())
	if ref == "" {
		return "/"
	}
	u, err := url.Parse(ref)
	if err != nil || (u.Host != "" && !strings.EqualFold(u.Host, r.Host)) {
		return "/"
	}
	if !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(u.Path, "//") {
		return "/"
	}
	target := u.Path
	if u.RawQuery != "" {
		target += "?" + u.RawQuery
	}
	return target
}
