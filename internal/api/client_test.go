package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/PriyanKishoreMS/transmyaction-dash/internal/core"
	"github.com/PriyanKishoreMS/transmyaction-dash/internal/log"
	"github.com/PriyanKishoreMS/transmyaction-dash/internal/session"
)

func newTestLogger() *log.Logger {
	return log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
}

func newTestSession(t *testing.T) *session.Store {
	t.Helper()

	storage, err := session.NewSQLiteStorage(filepath.Join(t.TempDir(), "session.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStorage() error = %v", err)
	}
	t.Cleanup(func() { storage.Close() })

	return session.NewStore(storage, newTestLogger())
}

func loginTestSession(t *testing.T, store *session.Store, accessToken, refreshToken string) {
	t.Helper()
	err := store.Login(context.Background(), session.Credentials{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Username:     "finley",
		Email:        "finley@example.com",
	})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
}

func writeTxns(w http.ResponseWriter, txns []core.Transaction) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(txns)
}

func TestClientAttachesBearerToken(t *testing.T) {
	var gotAuth, gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		writeTxns(w, nil)
	}))
	defer server.Close()

	store := newTestSession(t)
	loginTestSession(t, store, "access-abc", "refresh-xyz")
	client := NewClient(server.URL, 5*time.Second, store, newTestLogger())

	if _, err := client.TransactionsLastWeek(context.Background(), "finley@example.com"); err != nil {
		t.Fatalf("TransactionsLastWeek() error = %v", err)
	}
	if gotAuth != "Bearer access-abc" {
		t.Errorf("Authorization = %q, want Bearer access-abc", gotAuth)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", gotContentType)
	}
}

func TestClientAnonymousWithoutSession(t *testing.T) {
	var gotAuth string
	hasAuth := true
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, hasAuth = r.Header["Authorization"]
		writeTxns(w, nil)
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, newTestSession(t), newTestLogger())

	if _, err := client.TransactionsLastWeek(context.Background(), "finley@example.com"); err != nil {
		t.Fatalf("TransactionsLastWeek() error = %v", err)
	}
	if hasAuth {
		t.Errorf("anonymous request carried Authorization header %q", gotAuth)
	}
}

func TestClientRefreshAndRetryOnce(t *testing.T) {
	var dataCalls, refreshCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/refresh":
			atomic.AddInt32(&refreshCalls, 1)
			if r.Header.Get("Authorization") != "Bearer refresh-xyz" {
				t.Errorf("refresh Authorization = %q, want Bearer refresh-xyz", r.Header.Get("Authorization"))
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"accessToken": "access-new"})
		default:
			atomic.AddInt32(&dataCalls, 1)
			if r.Header.Get("Authorization") != "Bearer access-new" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			writeTxns(w, []core.Transaction{{ID: 1, TxnType: core.TypeCredit}})
		}
	}))
	defer server.Close()

	store := newTestSession(t)
	loginTestSession(t, store, "access-stale", "refresh-xyz")
	client := NewClient(server.URL, 5*time.Second, store, newTestLogger())

	txns, err := client.TransactionsLastWeek(context.Background(), "finley@example.com")
	if err != nil {
		t.Fatalf("TransactionsLastWeek() error = %v", err)
	}
	if len(txns) != 1 || txns[0].ID != 1 {
		t.Errorf("transactions = %+v, want the retried response", txns)
	}
	if got := atomic.LoadInt32(&dataCalls); got != 2 {
		t.Errorf("data endpoint called %d times, want 2 (original + one retry)", got)
	}
	if got := atomic.LoadInt32(&refreshCalls); got != 1 {
		t.Errorf("refresh endpoint called %d times, want 1", got)
	}
	if store.AccessToken() != "access-new" {
		t.Errorf("AccessToken() = %v, want access-new (refresh must be committed)", store.AccessToken())
	}
}

func TestClientRefreshFailureClearsSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	store := newTestSession(t)
	loginTestSession(t, store, "access-stale", "refresh-stale")
	client := NewClient(server.URL, 5*time.Second, store, newTestLogger())

	_, err := client.TransactionsLastWeek(context.Background(), "finley@example.com")
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("error = %v, want ErrSessionExpired", err)
	}
	if _, ok := store.Current(); ok {
		t.Error("session still present after irrecoverable refresh failure")
	}
}

func TestClientRetriedResponseReturnedAsIs(t *testing.T) {
	var dataCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/refresh" {
			json.NewEncoder(w).Encode(map[string]string{"accessToken": "access-new"})
			return
		}
		// Still unauthorized after the refresh; the client must not loop.
		atomic.AddInt32(&dataCalls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	store := newTestSession(t)
	loginTestSession(t, store, "access-stale", "refresh-xyz")
	client := NewClient(server.URL, 5*time.Second, store, newTestLogger())

	_, err := client.TransactionsLastWeek(context.Background(), "finley@example.com")
	if err == nil {
		t.Fatal("expected an error for a 401 after retry")
	}
	if errors.Is(err, ErrSessionExpired) {
		t.Errorf("error = %v, want a plain upstream error, not session expiry", err)
	}
	if got := atomic.LoadInt32(&dataCalls); got != 2 {
		t.Errorf("data endpoint called %d times, want exactly 2", got)
	}
}

func TestClientConcurrentRefreshCollapsed(t *testing.T) {
	const workers = 8

	var refreshCalls int32
	var arrived sync.WaitGroup
	arrived.Add(workers)
	release := make(chan struct{})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/refresh":
			atomic.AddInt32(&refreshCalls, 1)
			json.NewEncoder(w).Encode(map[string]string{"accessToken": "access-new"})
		default:
			if r.Header.Get("Authorization") == "Bearer access-new" {
				writeTxns(w, nil)
				return
			}
			// Hold every stale request until all workers are in flight so
			// their refresh attempts overlap.
			arrived.Done()
			<-release
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer server.Close()

	store := newTestSession(t)
	loginTestSession(t, store, "access-stale", "refresh-xyz")
	client := NewClient(server.URL, 5*time.Second, store, newTestLogger())

	go func() {
		arrived.Wait()
		close(release)
	}()

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.TransactionsLastWeek(context.Background(), "finley@example.com")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("concurrent call error = %v", err)
		}
	}
	if got := atomic.LoadInt32(&refreshCalls); got != 1 {
		t.Errorf("refresh endpoint called %d times, want 1 (collapsed)", got)
	}
}

func TestClientTransactionPaths(t *testing.T) {
	var gotPath, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		writeTxns(w, nil)
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, newTestSession(t), newTestLogger())
	ctx := context.Background()

	if _, err := client.TransactionsByMonth(ctx, "finley@example.com", 2026, time.March); err != nil {
		t.Fatalf("TransactionsByMonth() error = %v", err)
	}
	if gotPath != "/txns/finley@example.com/month/2026/03" {
		t.Errorf("month path = %q, want /txns/finley@example.com/month/2026/03", gotPath)
	}

	if _, err := client.TransactionsLastWeek(ctx, "finley@example.com"); err != nil {
		t.Fatalf("TransactionsLastWeek() error = %v", err)
	}
	if gotPath != "/txns/finley@example.com/7d" {
		t.Errorf("7d path = %q, want /txns/finley@example.com/7d", gotPath)
	}

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	if _, err := client.TransactionsByRange(ctx, "finley@example.com", from, to); err != nil {
		t.Fatalf("TransactionsByRange() error = %v", err)
	}
	if gotPath != "/txns/finley@example.com" {
		t.Errorf("range path = %q, want /txns/finley@example.com", gotPath)
	}
	if gotQuery != "from=2026-01-01&to=2026-01-31" {
		t.Errorf("range query = %q, want from=2026-01-01&to=2026-01-31", gotQuery)
	}
}

func TestClientAddTransaction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/txns/add" {
			t.Errorf("got %s %s, want POST /txns/add", r.Method, r.URL.Path)
		}
		var input core.TransactionInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			t.Errorf("decode submitted body: %v", err)
		}
		created := core.Transaction{
			ID:            42,
			UserEmail:     input.UserEmail,
			Amount:        input.Amount,
			AccountNumber: input.AccountNumber,
			TxnMethod:     core.TxnMethod(input.TxnMethod),
			TxnMode:       core.TxnMode(input.TxnMode),
			TxnType:       core.TxnType(input.TxnType),
			TxnRef:        input.TxnRef,
			CounterParty:  input.CounterParty,
			TxnDatetime:   input.TxnDatetime,
			CreatedTime:   time.Now().UTC(),
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(created)
	}))
	defer server.Close()

	store := newTestSession(t)
	loginTestSession(t, store, "access-abc", "refresh-xyz")
	client := NewClient(server.URL, 5*time.Second, store, newTestLogger())

	input := core.TransactionInput{
		UserEmail:     "finley@example.com",
		Amount:        decimal.NewFromFloat(99.50),
		AccountNumber: "ACC-1",
		TxnMethod:     "card",
		TxnMode:       "online",
		TxnType:       "debit",
		TxnRef:        "REF-7",
		CounterParty:  "Grocery Mart",
		TxnDatetime:   time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}

	created, err := client.AddTransaction(context.Background(), input)
	if err != nil {
		t.Fatalf("AddTransaction() error = %v", err)
	}
	if created.ID != 42 {
		t.Errorf("created.ID = %v, want 42", created.ID)
	}
	if created.CreatedTime.IsZero() {
		t.Error("created.CreatedTime is zero, want server-assigned timestamp")
	}
	if !created.Amount.Equal(input.Amount) {
		t.Errorf("created.Amount = %v, want %v", created.Amount, input.Amount)
	}
}

func TestClientUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, newTestSession(t), newTestLogger())

	_, err := client.TransactionsLastWeek(context.Background(), "finley@example.com")
	if !errors.Is(err, ErrUpstream) {
		t.Errorf("error = %v, want ErrUpstream", err)
	}
}
