package backend

// ErrorKind classifies why a backend call failed.
type ErrorKind string

const (
	// KindNone marks a successful result.
	KindNone ErrorKind = ""
	// KindMissingConfig means no backend base URL is configured; no I/O was attempted.
	KindMissingConfig ErrorKind = "missing_config"
	// KindUnreachable covers transport failures: refused, timeout, DNS.
	KindUnreachable ErrorKind = "backend_unreachable"
	// KindNonJSON means the backend answered with a body that failed to parse.
	KindNonJSON ErrorKind = "non_json_response"
	// KindRejected means a non-2xx status with a parseable JSON body.
	KindRejected ErrorKind = "backend_rejected"
	// KindShapeInvalid means the response was valid JSON but failed the
	// caller's local schema expectations.
	KindShapeInvalid ErrorKind = "shape_invalid"
	// KindAuthInvalid means the backend reported failed authentication.
	KindAuthInvalid ErrorKind = "auth_invalid"
)

// Result is the tagged outcome of one RPC call. Created once per call,
// consumed immediately by the calling handler, never persisted.
type Result struct {
	OK      bool
	Status  int
	Kind    ErrorKind
	RawBody string
	Parsed  any
}

// MetricOutcome is the label value recorded for this result.
func (r Result) MetricOutcome() string {
	if r.OK {
		return "ok"
	}
	return string(r.Kind)
}

// Message digs a displayable message out of the parsed payload, falling
// back to the given default. The backend reports errors as {message: "..."}
// when it reports them at all.
func (r Result) Message(fallback string) string {
	if obj, ok := r.Parsed.(map[string]any); ok {
		if msg, ok := obj["message"].(string); ok && msg != "" {
			return msg
		}
	}
	return fallback
}
