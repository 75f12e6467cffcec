package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/PriyanKishoreMS/transmyaction-dash/internal/api"
	"github.com/PriyanKishoreMS/transmyaction-dash/internal/core"
	"github.com/PriyanKishoreMS/transmyaction-dash/internal/log"
	"github.com/PriyanKishoreMS/transmyaction-dash/internal/session"
)

// tokensCookie is set by the login provider on the callback redirect.
const tokensCookie = "tokens"

type callbackPayload struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	User         struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Avatar   string `json:"avatar"`
	} `json:"user"`
}

// handleLogin hands the browser off to the delegated login flow.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, s.client.LoginURL(), http.StatusFound)
}

// handleAuthCallback completes the login flow: the provider redirects
// here with the tokens cookie, which is consumed exactly once.
func (s *Server) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(tokensCookie)
	if err != nil {
		s.logger.WarnContext(r.Context(), "Auth callback without tokens cookie")
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	raw, err := url.QueryUnescape(cookie.Value)
	if err != nil {
		raw = cookie.Value
	}

	var payload callbackPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		s.logger.WarnContext(r.Context(), "Auth callback with malformed tokens cookie",
			log.FieldError, err.Error())
		s.expireTokensCookie(w)
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	err = s.session.Login(r.Context(), session.Credentials{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		Username:     payload.User.Username,
		Email:        payload.User.Email,
		Avatar:       payload.User.Avatar,
	})
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to establish session",
			log.FieldError, err.Error())
		s.expireTokensCookie(w)
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	s.expireTokensCookie(w)
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) expireTokensCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     tokensCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Logout(r.Context()); err != nil {
		s.logger.ErrorContext(r.Context(), "Logout failed", log.FieldError, err.Error())
		WriteError(w, http.StatusInternalServerError, "Failed to clear session")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"loggedIn": false})
}

// handleSession reports who is logged in, if anyone.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	creds, ok := s.session.Current()
	if !ok {
		WriteJSON(w, http.StatusOK, map[string]bool{"loggedIn": false})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"loggedIn": true,
		"user": map[string]string{
			"username": creds.Username,
			"email":    creds.Email,
			"avatar":   creds.Avatar,
		},
	})
}

// requireSession resolves the logged-in email or writes a 401.
func (s *Server) requireSession(w http.ResponseWriter, r *http.Request) (string, bool) {
	email := s.session.Email()
	if email == "" {
		WriteError(w, http.StatusUnauthorized, "Not logged in")
		return "", false
	}
	return email, true
}

// writeFetchError maps loader and client failures onto API statuses.
func (s *Server) writeFetchError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, api.ErrSessionExpired):
		WriteError(w, http.StatusUnauthorized, "Session expired")
	case errors.Is(err, api.ErrUpstream):
		s.logger.ErrorContext(r.Context(), "Upstream fetch failed", log.FieldError, err.Error())
		WriteError(w, http.StatusBadGateway, "Failed to fetch transactions, try again")
	default:
		s.logger.ErrorContext(r.Context(), "Transaction fetch failed", log.FieldError, err.Error())
		WriteError(w, http.StatusInternalServerError, "Failed to fetch transactions, try again")
	}
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	email, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	filter, err := ParseFilter(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	txns, err := s.loader.Transactions(r.Context(), email, filter)
	if err != nil {
		s.writeFetchError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txns,
		"count":        len(txns),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	email, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	filter, err := ParseFilter(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	txns, err := s.loader.Transactions(r.Context(), email, filter)
	if err != nil {
		s.writeFetchError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, core.Aggregate(txns))
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	email, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	var input core.TransactionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	// The form pre-fills the email from the session.
	if input.UserEmail == "" {
		input.UserEmail = email
	}
	if input.TxnDatetime.IsZero() {
		input.TxnDatetime = time.Now()
	}

	if errs := input.Validate(); len(errs) > 0 {
		WriteValidationErrors(w, errs)
		return
	}

	created, err := s.client.AddTransaction(r.Context(), input.Normalize())
	if err != nil {
		switch {
		case errors.Is(err, api.ErrSessionExpired):
			WriteError(w, http.StatusUnauthorized, "Session expired")
		case errors.Is(err, api.ErrUpstream):
			s.logger.ErrorContext(r.Context(), "Transaction submission rejected upstream",
				log.FieldError, err.Error(),
				log.FieldUserEmail, input.UserEmail)
			WriteError(w, http.StatusBadGateway, "Failed to add transaction, try again")
		default:
			s.logger.ErrorContext(r.Context(), "Transaction submission failed",
				log.FieldError, err.Error(),
				log.FieldUserEmail, input.UserEmail)
			WriteError(w, http.StatusInternalServerError, "Failed to add transaction, try again")
		}
		return
	}

	// Cached lists are stale once a new record exists.
	s.loader.Invalidate()

	WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"transaction": created,
	})
}
