package log

import "sort"

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldQuery         = "query"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldUserAgent     = "user_agent"
	FieldReferer       = "referer"
	FieldSuccess       = "success"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldQuestionHash  = "question_hash"
	FieldStrategy      = "strategy"
	FieldOutcome       = "outcome"
	FieldReason        = "reason"
	FieldCandidates    = "candidates"
	FieldCacheHit      = "cache_hit"
	FieldModel         = "model"
	FieldCategory      = "category"
	FieldMonth         = "month"
	FieldTerm          = "term"
	FieldDetector      = "detector"
	FieldFindings      = "findings"
	FieldSkippedGroups = "skipped_groups"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentQuery     = "query"
	ComponentRouter    = "router"
	ComponentDetect    = "detect"
	ComponentStorage   = "storage"
	ComponentCache     = "cache"
	ComponentRetrieval = "retrieval"
	ComponentLLM       = "llm"
	ComponentReports   = "reports"
	ComponentBudget    = "budget"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentSecurity  = "security"
	ComponentRateLimit = "rate_limit"
	ComponentTrace     = "trace"
)

// Operations defines standard operation names
const (
	OpAsk      = "ask"
	OpRoute    = "route"
	OpGenerate = "generate"
	OpEmbed    = "embed"
	OpImport   = "import"
	OpDetect   = "detect"
	OpPublish  = "publish"
	OpRead     = "read"
	OpBuild    = "build"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithRequestID adds request ID field
func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

// WithClientIP adds client IP field
func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithRouting adds the fields describing how a question was answered
func (f LogFields) WithRouting(strategy, outcome string, candidates int) LogFields {
	f[FieldStrategy] = strategy
	f[FieldOutcome] = outcome
	f[FieldCandidates] = candidates
	return f
}

// WithHTTPRequest adds HTTP request fields; empty optional values are skipped
func (f LogFields) WithHTTPRequest(method, path, query, userAgent, referer string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	for k, v := range map[string]string{FieldQuery: query, FieldUserAgent: userAgent, FieldReferer: referer} {
		if v != "" {
			f[k] = v
		}
	}
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
	return f
}

// ToSlice converts LogFields to slog key/value pairs in key order
func (f LogFields) ToSlice() []any {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	slice := make([]any, 0, len(f)*2)
	for _, k := range keys {
		slice = append(slice, k, f[k])
	}
	return slice
}
