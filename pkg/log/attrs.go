package log

import "log/slog"

func SessionID[T ~string](id T) slog.Attr {
	return slog.String("session_id", string(id))
}

func Driver(name string) slog.Attr {
	return slog.String("driver", name)
}

func Status[T ~string](status T) slog.Attr {
	return slog.String("status", string(status))
}

func Attempt(n int) slog.Attr {
	return slog.Int("attempt", n)
}

func StatusCode(code int) slog.Attr {
	return slog.Int("status_code", code)
}

func Path(path string) slog.Attr {
	return slog.String("path", path)
}

func Key(key string) slog.Attr {
	return slog.String("key", key)
}

// TokenLen records only the length of a session token. The token itself
// grants session recovery and never appears in logs
func TokenLen(token string) slog.Attr {
	return slog.Int("token_len", len(token))
}

func Error(err error) slog.Attr {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return slog.String("error", msg)
}
