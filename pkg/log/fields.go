package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"
	FieldRoute     = "route"

	// Actor (matches pkg/middleware/auth.go keys)
	FieldUserID   = "user_id"
	FieldUsername = "username"

	// Service
	FieldService = "service"

	// Chat session
	FieldConnID       = "conn_id"
	FieldRoomID       = "room_id"
	FieldMessageID    = "message_id"
	FieldSessionState = "session_state"
	FieldEventKind    = "event_kind"

	// Relay
	FieldQueue     = "queue"
	FieldDriver    = "driver"
	FieldErrorKind = "error_kind"

	// Log type (for audit log)
	FieldLogType = "log_type"
	LogTypeAudit = "audit"
)
