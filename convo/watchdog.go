package convo

import (
	"fmt"
	"time"
)

// WatchdogConfig controls the idle-disconnect behavior of a listening
// session.
type WatchdogConfig struct {
	// IdleTimeout is how long a session may sit in listening with no
	// transcription before it is closed.
	IdleTimeout time.Duration `json:"idle_timeout"`
	// WarnBefore is how far ahead of the deadline the soft warning fires.
	WarnBefore time.Duration `json:"warn_before"`
	// CloseGrace is the pause between the final notice and the close, long
	// enough for the peer to render it.
	CloseGrace time.Duration `json:"close_grace"`
}

func DefaultWatchdogConfig() WatchdogConfig {
	return WatchdogConfig{
		IdleTimeout: 60 * time.Second,
		WarnBefore:  10 * time.Second,
		CloseGrace:  2 * time.Second,
	}
}

// watchdog arms two timers per listening phase: a soft warning and the hard
// deadline. The listen loop decides whether either actually applies, since
// transcription may have arrived in the meantime.
type watchdog struct {
	soft *time.Timer
	hard *time.Timer
}

func newWatchdog(cfg WatchdogConfig) *watchdog {
	warnAt := cfg.IdleTimeout - cfg.WarnBefore
	if warnAt <= 0 {
		warnAt = cfg.IdleTimeout / 2
	}
	return &watchdog{
		soft: time.NewTimer(warnAt),
		hard: time.NewTimer(cfg.IdleTimeout),
	}
}

func (w *watchdog) Soft() <-chan time.Time { return w.soft.C }
func (w *watchdog) Hard() <-chan time.Time { return w.hard.C }

func (w *watchdog) Stop() {
	w.soft.Stop()
	w.hard.Stop()
}

func softWarningText(cfg WatchdogConfig) string {
	return fmt.Sprintf("Reminder: No transcription detected, disconnecting in %d seconds...",
		int(cfg.WarnBefore.Seconds()))
}

// hardWarningText is the terminal notice hardware peers key off to power
// down.
const hardWarningText = "OFF"
