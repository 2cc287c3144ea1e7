package apperr

// Result is the boundary shape returned to callers: an explicit success flag
// plus, on failure, the error kind and a human-readable message.
type Result struct {
	OK      bool   `json:"ok"`
	Kind    Kind   `json:"kind,omitempty"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func Success(data any) Result {
	return Result{OK: true, Data: data}
}

func Failure(err error) Result {
	if err == nil {
		return Result{OK: true}
	}
	return Result{OK: false, Kind: KindOf(err), Message: err.Error()}
}
