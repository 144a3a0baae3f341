package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldErrorKind  = "error_kind"
	FieldOperation  = "operation"
	FieldUserID     = "user_id"
	FieldExpenseID  = "expense_id"
	FieldCategory   = "category"
	FieldCount      = "count"
	FieldStatus     = "status"
	FieldCollection = "collection"
	FieldBackend    = "backend"
)

// Components defines standard component names
const (
	ComponentApp      = "app"
	ComponentHTTP     = "http"
	ComponentStore    = "store"
	ComponentIdentity = "identity"
	ComponentRemote   = "remote"
	ComponentAMQP     = "amqp"
	ComponentWorker   = "worker"
	ComponentBackend  = "backend"
	ComponentAuth     = "auth"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpFetchAll = "fetch_all"
	OpFilter   = "filter_by_category"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpQuery    = "query"
	OpGet      = "get"
	OpPublish  = "publish"
	OpConsume  = "consume"
	OpReset    = "reset"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithUser adds the principal's id
func (f LogFields) WithUser(userID string) LogFields {
	if userID != "" {
		f[FieldUserID] = userID
	}
	return f
}

// WithExpense adds expense id and category when known
func (f LogFields) WithExpense(id string, category string) LogFields {
	if id != "" {
		f[FieldExpenseID] = id
	}
	if category != "" {
		f[FieldCategory] = category
	}
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithHTTPRequest adds HTTP request fields
func (f LogFields) WithHTTPRequest(method, path, clientIP string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldClientIP] = clientIP
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
