// Package api is the HTTP client for the remote ledger service. It
// attaches the session's bearer token to every call and transparently
// refreshes it once when the service answers 401.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/PriyanKishoreMS/transmyaction-dash/internal/core"
	"github.com/PriyanKishoreMS/transmyaction-dash/internal/log"
	"github.com/PriyanKishoreMS/transmyaction-dash/internal/session"
)

// ErrSessionExpired is returned when the access token is rejected and
// the refresh attempt fails. The session has already been cleared when
// callers see this error.
var ErrSessionExpired = errors.New("session expired")

// ErrUpstream wraps non-2xx responses from the ledger service.
var ErrUpstream = errors.New("upstream request failed")

type Client struct {
	baseURL    string
	httpClient *http.Client
	session    *session.Store
	logger     *log.Logger

	// Collapses concurrent refresh attempts into a single upstream call.
	refreshGroup singleflight.Group
}

func NewClient(baseURL string, timeout time.Duration, sess *session.Store, logger *log.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		session:    sess,
		logger:     logger.WithComponent(log.ComponentAPI),
	}
}

// LoginURL is the browser entry point for the delegated login flow.
func (c *Client) LoginURL() string {
	return c.baseURL + "/login"
}

// do issues one request with the given token attached. The body is a
// pre-marshaled payload so a retry can replay it.
func (c *Client) do(ctx context.Context, method, rawURL, token string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.httpClient.Do(req)
}

// Do issues an authenticated request against the ledger service. On a
// 401 it refreshes the access token once and retries; a failed refresh
// logs the session out and returns ErrSessionExpired. Every other
// status is the caller's to interpret.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body []byte) (*http.Response, error) {
	rawURL := c.baseURL + path
	if len(query) > 0 {
		rawURL += "?" + query.Encode()
	}

	token := c.session.AccessToken()
	resp, err := c.do(ctx, method, rawURL, token, body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.StatusCode != http.StatusUnauthorized || token == "" {
		return resp, nil
	}
	resp.Body.Close()

	newToken, err := c.refreshAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	c.logger.InfoContext(ctx, "Retrying request with refreshed token",
		log.FieldMethod, method,
		log.FieldPath, path)

	resp, err = c.do(ctx, method, rawURL, newToken, body)
	if err != nil {
		return nil, fmt.Errorf("%s %s (retry): %w", method, path, err)
	}
	return resp, nil
}

// refreshAccessToken exchanges the refresh token for a new access
// token and commits it to the session. Concurrent callers share one
// upstream refresh.
func (c *Client) refreshAccessToken(ctx context.Context) (string, error) {
	token, err, _ := c.refreshGroup.Do("refresh", func() (any, error) {
		refreshToken := c.session.RefreshToken()
		if refreshToken == "" {
			return "", c.expireSession(ctx, errors.New("no refresh token"))
		}

		resp, err := c.do(ctx, http.MethodGet, c.baseURL+"/refresh", refreshToken, nil)
		if err != nil {
			return "", fmt.Errorf("refresh request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return "", c.expireSession(ctx, fmt.Errorf("refresh rejected with status %d", resp.StatusCode))
		}

		var payload struct {
			AccessToken string `json:"accessToken"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return "", c.expireSession(ctx, fmt.Errorf("decode refresh response: %w", err))
		}
		if payload.AccessToken == "" {
			return "", c.expireSession(ctx, errors.New("refresh response missing access token"))
		}

		if err := c.session.UpdateAccessToken(ctx, payload.AccessToken); err != nil {
			return "", fmt.Errorf("commit refreshed token: %w", err)
		}
		return payload.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return token.(string), nil
}

// expireSession clears the session and maps the cause onto
// ErrSessionExpired.
func (c *Client) expireSession(ctx context.Context, cause error) error {
	c.logger.WarnContext(ctx, "Token refresh failed, clearing session",
		log.FieldError, cause.Error(),
		log.FieldOperation, log.OpRefresh)
	if err := c.session.Logout(ctx); err != nil {
		c.logger.ErrorContext(ctx, "Failed to clear session after refresh failure",
			log.FieldError, err.Error())
	}
	return fmt.Errorf("%w: %v", ErrSessionExpired, cause)
}

// getTransactions fetches and decodes a transaction list endpoint.
func (c *Client) getTransactions(ctx context.Context, path string, query url.Values) ([]core.Transaction, error) {
	resp, err := c.Do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: GET %s returned status %d", ErrUpstream, path, resp.StatusCode)
	}

	var txns []core.Transaction
	if err := json.NewDecoder(resp.Body).Decode(&txns); err != nil {
		c.logger.ErrorContext(ctx, "Failed to decode transaction list",
			log.FieldPath, path,
			log.FieldError, err.Error())
		return nil, fmt.Errorf("decode transactions from %s: %w", path, err)
	}
	return txns, nil
}

// TransactionsByMonth returns all records for one calendar month.
func (c *Client) TransactionsByMonth(ctx context.Context, email string, year int, month time.Month) ([]core.Transaction, error) {
	path := fmt.Sprintf("/txns/%s/month/%d/%02d", url.PathEscape(email), year, int(month))
	return c.getTransactions(ctx, path, nil)
}

// TransactionsLastWeek returns records from the trailing seven days.
func (c *Client) TransactionsLastWeek(ctx context.Context, email string) ([]core.Transaction, error) {
	path := fmt.Sprintf("/txns/%s/7d", url.PathEscape(email))
	return c.getTransactions(ctx, path, nil)
}

// TransactionsByRange returns records in an inclusive date range.
func (c *Client) TransactionsByRange(ctx context.Context, email string, from, to time.Time) ([]core.Transaction, error) {
	path := fmt.Sprintf("/txns/%s", url.PathEscape(email))
	query := url.Values{
		"from": []string{from.Format("2006-01-02")},
		"to":   []string{to.Format("2006-01-02")},
	}
	return c.getTransactions(ctx, path, query)
}

// AddTransaction submits a validated record and returns the created
// row with its server-assigned id and createdTime.
func (c *Client) AddTransaction(ctx context.Context, input core.TransactionInput) (core.Transaction, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("encode transaction: %w", err)
	}

	resp, err := c.Do(ctx, http.MethodPost, "/txns/add", nil, body)
	if err != nil {
		return core.Transaction{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return core.Transaction{}, fmt.Errorf("%w: POST /txns/add returned status %d", ErrUpstream, resp.StatusCode)
	}

	var created core.Transaction
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		c.logger.ErrorContext(ctx, "Failed to decode created transaction",
			log.FieldError, err.Error())
		return core.Transaction{}, fmt.Errorf("decode created transaction: %w", err)
	}

	c.logger.InfoContext(ctx, "Transaction submitted",
		log.FieldUserEmail, input.UserEmail,
		log.FieldTxnType, input.TxnType,
		log.FieldCounterParty, input.CounterParty,
		log.FieldOperation, log.OpSubmit)
	return created, nil
}
