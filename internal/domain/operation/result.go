package operation

// Result is the outcome of one operation invocation. Produced once per
// invocation and immutable after creation.
type Result struct {
	Success bool
	Data    any
	Message string
	Err     string
}

// OK builds a successful result carrying data and an optional message.
func OK(data any, message string) *Result {
	return &Result{Success: true, Data: data, Message: message}
}

// Fail builds a failed result with the given error text.
func Fail(errText string) *Result {
	return &Result{Success: false, Err: errText}
}
