package middleware

// Context keys used to store request metadata.
const (
	ContextKeyClientID   = "client_id"
	ContextKeyClientRole = "client_role"
	ContextKeyRequestID  = "request_id"
)

func errorBody(message string) map[string]string {
	return map[string]string{"status": "error", "message": message}
}
