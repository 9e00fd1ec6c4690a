package instrumentation

// StatusClass collapses an HTTP status code to its class ("2xx", "4xx", ...)
// so per-code label values do not multiply series.
//
//	StatusClass(201) // "2xx"
//	StatusClass(404) // "4xx"
//	StatusClass(0)   // "unknown"
func StatusClass(code int) string {
	switch {
	case code >= 100 && code < 200:
		return "1xx"
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	}
	return "unknown"
}

// Calendar API operations.
const (
	OperationList   = "list"
	OperationCreate = "create"
	OperationUpdate = "update"
	OperationDelete = "delete"
	OperationToken  = "token"
)
