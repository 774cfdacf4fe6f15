// Package notify carries transient user-facing notifications and the
// diagnostic channel for swallowed errors.
package notify

import (
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/rs/zerolog"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

type Notification struct {
	Level   Level
	Message string
	At      time.Time
}

// Notifier is the surface the orchestrator and services talk to.
type Notifier interface {
	Notify(level Level, message string)
}

// Func adapts a function to the Notifier interface.
type Func func(level Level, message string)

func (f Func) Notify(level Level, message string) { f(level, message) }

// Center buffers recent notifications and mirrors them to the diagnostic
// log. It is the toast stack of the console.
type Center struct {
	mu     sync.Mutex
	recent []Notification
	max    int
	log    zerolog.Logger
	now    func() time.Time
}

func NewCenter(logger zerolog.Logger) *Center {
	return &Center{max: 50, log: logger, now: time.Now}
}

func (c *Center) Notify(level Level, message string) {
	n := Notification{Level: level, Message: CleanMessage(message), At: c.now()}

	c.mu.Lock()
	c.recent = append(c.recent, n)
	if len(c.recent) > c.max {
		c.recent = c.recent[len(c.recent)-c.max:]
	}
	c.mu.Unlock()

	evt := c.log.Info()
	if level == LevelError {
		evt = c.log.Error()
	} else if level == LevelWarning {
		evt = c.log.Warn()
	}
	evt.Str("level", string(level)).Msg(n.Message)
}

// Recent returns a copy of the buffered notifications, oldest first.
func (c *Center) Recent() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Notification, len(c.recent))
	copy(out, c.recent)
	return out
}

// CleanMessage strips the decorative symbol prefix the backend puts on its
// messages ("✅ Access granted" -> "Access granted"). Only the leading run
// of symbols and whitespace is removed; interior decoration is kept.
func CleanMessage(msg string) string {
	rest := msg
	for rest != "" {
		r := []rune(rest)[0]
		if !decorative(r) && !unicode.IsSpace(r) {
			break
		}
		rest = strings.TrimPrefix(rest, string(r))
	}
	return rest
}

func decorative(r rune) bool {
	switch {
	case r >= 0x1F000 && r <= 0x1FAFF: // emoji blocks
		return true
	case r >= 0x2600 && r <= 0x27BF: // misc symbols, dingbats (✅ ❌ ⚠)
		return true
	case r >= 0x2300 && r <= 0x23FF: // misc technical (⏳ ⏰ ⌛)
		return true
	case r == 0x2139: // ℹ
		return true
	case r == 0xFE0F: // variation selector riding on the symbol
		return true
	}
	return false
}
