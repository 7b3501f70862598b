package core

import (
	"fmt"
	"os"
	"time"
)

// Logger routes leveled log lines through a single handler func so callers
// can swap in structured backends without touching call sites. Child loggers
// created with With share the handler and accumulate attributes.
type Logger struct {
	handlerFunc func(level string, msg string, attrs map[string]interface{})
	attrs       map[string]interface{}
}

func NewLogger(handler func(level string, msg string, attrs map[string]interface{})) *Logger {
	return &Logger{
		handlerFunc: handler,
		attrs:       make(map[string]interface{}),
	}
}

// NewDevelopmentLogger creates a logger with plain console output of the form
// "ts [LEVEL] msg | k=v k=v".
func NewDevelopmentLogger() *Logger {
	handler := func(level string, msg string, attrs map[string]interface{}) {
		attrStr := ""
		if len(attrs) > 0 {
			attrStr = " |"
			for k, v := range attrs {
				attrStr += fmt.Sprintf(" %s=%v", k, v)
			}
		}
		line := fmt.Sprintf("%s [%s] %s%s\n", time.Now().Format(time.RFC3339), level, msg, attrStr)
		if level == "FATAL" {
			fmt.Fprint(os.Stderr, line)
			os.Exit(1)
		}
		fmt.Print(line)
	}
	return NewLogger(handler)
}

func (l *Logger) log(level string, msg string, args ...interface{}) {
	if l.handlerFunc == nil {
		return
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	l.handlerFunc(level, msg, l.attrs)
}

func (l *Logger) Debug(msg string, args ...interface{})     { l.log("DEBUG", msg, args...) }
func (l *Logger) Debugf(format string, args ...interface{}) { l.log("DEBUG", format, args...) }
func (l *Logger) Info(msg string, args ...interface{})      { l.log("INFO", msg, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.log("INFO", format, args...) }
func (l *Logger) Warn(msg string, args ...interface{})      { l.log("WARN", msg, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.log("WARN", format, args...) }
func (l *Logger) Error(msg string, args ...interface{})     { l.log("ERROR", msg, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.log("ERROR", format, args...) }
func (l *Logger) Fatal(msg string, args ...interface{})     { l.log("FATAL", msg, args...) }

// With returns a child logger carrying the combined attribute set.
func (l *Logger) With(attrs map[string]interface{}) *Logger {
	combined := make(map[string]interface{}, len(l.attrs)+len(attrs))
	for k, v := range l.attrs {
		combined[k] = v
	}
	for k, v := range attrs {
		combined[k] = v
	}
	return &Logger{handlerFunc: l.handlerFunc, attrs: combined}
}
