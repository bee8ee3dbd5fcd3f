package logging

import "log/slog"

// ForSession scopes logger to a viewing session. A nil logger stays nil so
// callers can keep using the helpers below unconditionally.
func ForSession(logger *slog.Logger, code string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(FieldSession, code)
}

// ForResult scopes logger to a stored match result.
func ForResult(logger *slog.Logger, resultID, game string) *slog.Logger {
	if logger == nil {
		return nil
	}
	if game == "" {
		return logger.With(FieldResultID, resultID)
	}
	return logger.With(FieldResultID, resultID, FieldGame, game)
}

func Info(logger *slog.Logger, msg string, args ...any) {
	if logger != nil {
		logger.Info(msg, args...)
	}
}

func Warn(logger *slog.Logger, msg string, args ...any) {
	if logger != nil {
		logger.Warn(msg, args...)
	}
}

// Error logs msg with err under FieldError. A nil err is left out.
func Error(logger *slog.Logger, msg string, err error, args ...any) {
	if logger == nil {
		return
	}
	if err != nil {
		args = append(args, FieldError, err)
	}
	logger.Error(msg, args...)
}
