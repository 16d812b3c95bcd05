package core

import "log"

// Logger logs messages at increasing severity levels.
// Trailing args may carry an error, a user.User (for error reporting context)
// or any extra values the implementation knows how to record.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

type consoleLogger struct {
	std *log.Logger
}

var _ Logger = (*consoleLogger)(nil)

func NewConsoleLogger(std *log.Logger) Logger {
	return &consoleLogger{std: std}
}

func (l consoleLogger) print(lvl, msg string, args []interface{}) {
	l.std.Printf("%s: %s", lvl, msg)
	for _, arg := range args {
		l.std.Printf("%+v", arg)
	}
}

func (l consoleLogger) Debug(msg string, args ...interface{}) { l.print("DEBUG", msg, args) }
func (l consoleLogger) Info(msg string, args ...interface{})  { l.print("INFO", msg, args) }
func (l consoleLogger) Warn(msg string, args ...interface{})  { l.print("WARN", msg, args) }
func (l consoleLogger) Error(msg string, args ...interface{}) { l.print("ERROR", msg, args) }

func (l consoleLogger) Fatal(msg string, args ...interface{}) {
	l.print("FATAL", msg, args)
	l.std.Fatal(msg)
}
