package stubapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const maxBodyBytes = 1 << 20

// Account is a seeded bank account.
type Account struct {
	ID       string  `json:"id"`
	Owner    string  `json:"owner"`
	Type     string  `json:"type"`
	Currency string  `json:"currency"`
	Balance  float64 `json:"balance"`
}

// Transfer is a transfer created through POST /transfers.
type Transfer struct {
	ID          string  `json:"id"`
	FromAccount string  `json:"fromAccount"`
	ToAccount   string  `json:"toAccount"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"createdAt"`
}

type transaction struct {
	ID        string  `json:"id"`
	AccountID string  `json:"accountId"`
	Amount    float64 `json:"amount"`
	Type      string  `json:"type"`
}

func seedAccounts() map[string]Account {
	return map[string]Account{
		"acc-1001": {ID: "acc-1001", Owner: "Alice", Type: "checking", Currency: "EUR", Balance: 2500.00},
		"acc-1002": {ID: "acc-1002", Owner: "Bob", Type: "savings", Currency: "EUR", Balance: 10400.50},
	}
}

func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_data", "expected a JSON object with username and password")
		return
	}
	if creds.Username == "" || creds.Password == "" {
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "username and password are required")
		return
	}
	session := uuid.NewString()
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: session, Path: "/", HttpOnly: true})
	writeJSON(w, http.StatusOK, map[string]string{"token": session, "user": creds.Username})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1})
	w.WriteHeader(http.StatusNoContent)
}

// me answers 200 only for a request carrying the session cookie.
func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil || cookie.Value == "" {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "no session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"session": cookie.Value})
}

func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	accounts := make([]Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		accounts = append(accounts, a)
	}
	s.mu.Unlock()
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": accounts})
}

func (s *Server) account(w http.ResponseWriter, r *http.Request) (Account, bool) {
	id := chi.URLParam(r, "accountId")
	s.mu.Lock()
	a, ok := s.accounts[id]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", fmt.Sprintf("account %s not found", id))
	}
	return a, ok
}

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	if a, ok := s.account(w, r); ok {
		writeJSON(w, http.StatusOK, a)
	}
}

func (s *Server) getBalance(w http.ResponseWriter, r *http.Request) {
	if a, ok := s.account(w, r); ok {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"accountId": a.ID,
			"balance":   a.Balance,
			"currency":  a.Currency,
		})
	}
}

func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("accountId")
	if accountID == "" {
		writeError(w, http.StatusBadRequest, "invalid_data", "accountId query parameter is required")
		return
	}
	txs := []transaction{
		{ID: "tx-1", AccountID: accountID, Amount: -42.10, Type: "card"},
		{ID: "tx-2", AccountID: accountID, Amount: 1500, Type: "salary"},
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": txs})
}

// createTransfer accepts any JSON object. Amount, when present, must be
// positive.
func (s *Server) createTransfer(w http.ResponseWriter, r *http.Request) {
	var req map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_data", "expected a JSON object")
		return
	}

	t := Transfer{ID: uuid.NewString(), Status: "pending", Currency: "EUR", CreatedAt: s.now().UTC().Format("2006-01-02T15:04:05Z")}
	if v, ok := req["fromAccount"].(string); ok {
		t.FromAccount = v
	}
	if v, ok := req["toAccount"].(string); ok {
		t.ToAccount = v
	}
	if v, ok := req["currency"].(string); ok && v != "" {
		t.Currency = v
	}
	if raw, ok := req["amount"]; ok {
		amount, isNumber := raw.(float64)
		if !isNumber || amount <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_amount", "amount must be a positive number")
			return
		}
		t.Amount = amount
	}

	s.mu.Lock()
	s.transfers[t.ID] = t
	s.order = append(s.order, t.ID)
	s.mu.Unlock()

	w.Header().Set("Location", "/transfers/"+t.ID)
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) getTransfer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "transferId")
	s.mu.Lock()
	t, ok := s.transfers[id]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", fmt.Sprintf("transfer %s not found", id))
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// Transfers returns created transfers in creation order.
func (s *Server) Transfers() []Transfer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Transfer, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.transfers[id])
	}
	return out
}
