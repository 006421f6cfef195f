package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyOperation  = "operation"
	KeySlot       = "slot"
	KeyDepositor  = "depositor"
	KeyRecipient  = "recipient"
	KeyAmount     = "amount"
	KeyCompleted  = "is_completed"
	KeyProgramID  = "program_id"
	KeyDriver     = "driver"
	KeyEventType  = "event_type"
	KeyEventID    = "event_id"
	KeySubject    = "subject"
	KeyRequestID  = "request_id"
	KeyMethod     = "method"
	KeyPath       = "path"
	KeyStatus     = "status"
	KeyAddr       = "addr"
	KeyDurationMS = "duration_ms"
	KeyAttempt    = "attempt"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Operation(op string) slog.Attr   { return slog.String(KeyOperation, op) }
func Slot(s string) slog.Attr         { return slog.String(KeySlot, s) }
func Depositor(d string) slog.Attr    { return slog.String(KeyDepositor, d) }
func Recipient(r string) slog.Attr    { return slog.String(KeyRecipient, r) }
func Amount(a uint64) slog.Attr       { return slog.Uint64(KeyAmount, a) }
func Completed(c bool) slog.Attr      { return slog.Bool(KeyCompleted, c) }
func ProgramID(id string) slog.Attr   { return slog.String(KeyProgramID, id) }
func Driver(d string) slog.Attr       { return slog.String(KeyDriver, d) }
func EventType(t string) slog.Attr    { return slog.String(KeyEventType, t) }
func EventID(id string) slog.Attr     { return slog.String(KeyEventID, id) }
func Subject(s string) slog.Attr      { return slog.String(KeySubject, s) }
func RequestID(id string) slog.Attr   { return slog.String(KeyRequestID, id) }
func Method(m string) slog.Attr       { return slog.String(KeyMethod, m) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Status(code int) slog.Attr       { return slog.Int(KeyStatus, code) }
func Addr(a string) slog.Attr         { return slog.String(KeyAddr, a) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Attempt(n int) slog.Attr         { return slog.Int(KeyAttempt, n) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
