package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/coreos/go-systemd/v22/journal"
	"github.com/sirupsen/logrus"
)

var (
	runningSystemdOnce sync.Once
	runningSystemd     bool
)

// isRunningSystemd reports whether systemd is the init system.
func isRunningSystemd() bool {
	runningSystemdOnce.Do(func() {
		fi, err := os.Lstat("/run/systemd/system")
		runningSystemd = err == nil && fi.IsDir()
	})
	return runningSystemd
}

// useJournal sends every log entry to systemd-journald instead of the log
// output.
func useJournal() error {
	if !isRunningSystemd() || !journal.Enabled() {
		return errors.New("log-format journal requires systemd-journald")
	}
	logrus.AddHook(&journalHook{})
	logrus.SetOutput(io.Discard)
	return nil
}

type journalHook struct{}

var journalPriority = map[logrus.Level]journal.Priority{
	logrus.PanicLevel: journal.PriEmerg,
	logrus.FatalLevel: journal.PriCrit,
	logrus.ErrorLevel: journal.PriErr,
	logrus.WarnLevel:  journal.PriWarning,
	logrus.InfoLevel:  journal.PriInfo,
	logrus.DebugLevel: journal.PriDebug,
	logrus.TraceLevel: journal.PriDebug,
}

func (h *journalHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *journalHook) Fire(entry *logrus.Entry) error {
	vars := map[string]string{"SYSLOG_IDENTIFIER": "gamewrap"}
	for k, v := range entry.Data {
		vars[journalField(k)] = fmt.Sprint(v)
	}
	return journal.Send(entry.Message, journalPriority[entry.Level], vars)
}

// journalField converts a logrus field name into a journal field name in
// the GAMEWRAP_ namespace.
func journalField(name string) string {
	name = strings.ToUpper(name)
	b := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			b = append(b, c)
		} else {
			b = append(b, '_')
		}
	}
	return "GAMEWRAP_" + strings.TrimLeft(string(b), "_")
}
