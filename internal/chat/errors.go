package chat

// Error codes surfaced to the UI layer.
const (
	CodeTransport  = "transport_error"
	CodeValidation = "validation_error"
	CodeServer     = "server_error"
	CodeUpload     = "upload_error"
)

// Error ties a user-facing code and message to the underlying cause.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func chatError(code, msg string, err error) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}
