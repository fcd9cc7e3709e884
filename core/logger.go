package core

// Logger is any structured logger.
// args may carry errors, maps of extra data and the staff member the event relates to.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// LogPerson identifies who an event is about when reporting it.
type LogPerson struct {
	ID    string
	Name  string
	Email string
}
