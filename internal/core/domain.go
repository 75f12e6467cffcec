package core

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	TypeCredit     TxnType = "credit"
	TypeDebit      TxnType = "debit"
	TypeTransfer   TxnType = "transfer"
	TypeDeposit    TxnType = "deposit"
	TypeWithdrawal TxnType = "withdrawal"
)

const (
	MethodCard          TxnMethod = "card"
	MethodBankTransfer  TxnMethod = "bank_transfer"
	MethodCash          TxnMethod = "cash"
	MethodCheck         TxnMethod = "check"
	MethodMobilePayment TxnMethod = "mobile_payment"
)

const (
	ModeOnline    TxnMode = "online"
	ModeOffline   TxnMode = "offline"
	ModeAutomatic TxnMode = "automatic"
)

type (
	TxnType   string
	TxnMethod string
	TxnMode   string

	// Transaction is a single record as returned by the remote transaction
	// service. Records are immutable once created; id and createdTime are
	// assigned server-side.
	Transaction struct {
		ID            int64           `json:"id"`
		UserEmail     string          `json:"userEmail"`
		Amount        decimal.Decimal `json:"amount"`
		AccountNumber string          `json:"accountNumber"`
		TxnMethod     TxnMethod       `json:"txnMethod"`
		TxnMode       TxnMode         `json:"txnMode"`
		TxnType       TxnType         `json:"txnType"`
		TxnRef        string          `json:"txnRef"`
		CounterParty  string          `json:"counterParty"`
		TxnInfo       string          `json:"txnInfo,omitempty"`
		TxnDatetime   time.Time       `json:"txnDatetime"`
		CreatedTime   time.Time       `json:"createdTime"`
	}

	// TransactionInput is a candidate record for submission, before the
	// service assigns id and createdTime.
	TransactionInput struct {
		UserEmail     string          `json:"userEmail"`
		Amount        decimal.Decimal `json:"amount"`
		AccountNumber string          `json:"accountNumber"`
		TxnMethod     string          `json:"txnMethod"`
		TxnMode       string          `json:"txnMode"`
		TxnType       string          `json:"txnType"`
		TxnRef        string          `json:"txnRef"`
		CounterParty  string          `json:"counterParty"`
		TxnInfo       string          `json:"txnInfo,omitempty"`
		TxnDatetime   time.Time       `json:"txnDatetime"`
	}
)

// Amounts travel as plain JSON numbers on the wire.
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

var emailShape = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// ValidationErrors maps a field name to a human-readable message.
// An empty map means the input is valid.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "valid"
	}
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	return "invalid fields: " + strings.Join(fields, ", ")
}

// Validate checks every required field and reports one message per invalid
// field. It never contacts the network; txnInfo is optional and unchecked.
func (t TransactionInput) Validate() ValidationErrors {
	errs := make(ValidationErrors)

	switch email := strings.TrimSpace(t.UserEmail); {
	case email == "":
		errs["userEmail"] = "User email is required"
	case !emailShape.MatchString(email):
		errs["userEmail"] = "Please enter a valid email"
	}

	if !t.Amount.IsPositive() {
		errs["amount"] = "Amount must be greater than 0"
	}

	required := map[string]string{
		"accountNumber": t.AccountNumber,
		"txnMethod":     t.TxnMethod,
		"txnMode":       t.TxnMode,
		"txnType":       t.TxnType,
		"txnRef":        t.TxnRef,
		"counterParty":  t.CounterParty,
	}
	messages := map[string]string{
		"accountNumber": "Account number is required",
		"txnMethod":     "Transaction method is required",
		"txnMode":       "Transaction mode is required",
		"txnType":       "Transaction type is required",
		"txnRef":        "Transaction reference is required",
		"counterParty":  "Counter party is required",
	}
	for field, value := range required {
		if strings.TrimSpace(value) == "" {
			errs[field] = messages[field]
		}
	}

	if t.TxnDatetime.IsZero() {
		errs["txnDatetime"] = "Transaction date and time is required"
	}

	return errs
}

// Normalize trims free-form fields and converts the datetime to UTC, the
// canonical form sent to the remote service.
func (t TransactionInput) Normalize() TransactionInput {
	t.UserEmail = strings.TrimSpace(t.UserEmail)
	t.AccountNumber = strings.TrimSpace(t.AccountNumber)
	t.TxnMethod = strings.TrimSpace(t.TxnMethod)
	t.TxnMode = strings.TrimSpace(t.TxnMode)
	t.TxnType = strings.TrimSpace(t.TxnType)
	t.TxnRef = strings.TrimSpace(t.TxnRef)
	t.CounterParty = strings.TrimSpace(t.CounterParty)
	t.TxnInfo = strings.TrimSpace(t.TxnInfo)
	t.TxnDatetime = t.TxnDatetime.UTC()
	return t
}
