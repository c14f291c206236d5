// Package logging builds the slog loggers used by nhctl. Loggers write
// to stderr so that nexthop output on stdout stays machine readable, and
// levels can be raised per component ("manager=debug,transport=trace").
package logging

import (
	"fmt"
	"log/slog"
	"strings"
)

// Level is a log level. Debug through error match the slog levels;
// trace sits below debug and is used for raw netlink traffic.
type Level int

const (
	LevelTrace Level = -8
	LevelDebug Level = Level(slog.LevelDebug)
	LevelInfo  Level = Level(slog.LevelInfo)
	LevelWarn  Level = Level(slog.LevelWarn)
	LevelError Level = Level(slog.LevelError)
)

// DefaultLevel is used when no spec is given. A command line tool
// only reports what went wrong unless asked.
const DefaultLevel = LevelWarn

// ParseLevel parses trace, debug, info, warn or error, ignoring case.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error", "err":
		return LevelError, nil
	default:
		return DefaultLevel, fmt.Errorf("unknown log level: %q", s)
	}
}

// ToSlog converts l to a slog.Level.
func (l Level) ToSlog() slog.Level {
	return slog.Level(l)
}

func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "trace"
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("Level(%d)", l)
	}
}
