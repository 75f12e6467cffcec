package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldOperation  = "operation"

	FieldUserEmail    = "user_email"
	FieldPeriod       = "period"
	FieldYear         = "year"
	FieldMonth        = "month"
	FieldTxnType      = "txn_type"
	FieldTxnMethod    = "txn_method"
	FieldTxnRef       = "txn_ref"
	FieldCounterParty = "counter_party"
	FieldTxnCount     = "txn_count"
	FieldCacheKey     = "cache_key"
	FieldGeneration   = "generation"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentSession   = "session"
	ComponentAPI       = "api"
	ComponentLoader    = "loader"
	ComponentCache     = "cache"
	ComponentRateLimit = "rate_limit"
	ComponentTrace     = "trace"
)

// Operations defines standard operation names
const (
	OpLogin   = "login"
	OpLogout  = "logout"
	OpReload  = "reload"
	OpRefresh = "refresh"
	OpFetch   = "fetch"
	OpSubmit  = "submit"
	OpStats   = "stats"
)
