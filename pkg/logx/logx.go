// Package logx builds the logrus entries the node processes log through.
package logx

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New returns a logger entry tagged with the node identity, e.g.
// "MASTER:Main" or "SLAVE:Apex". Level comes from LOG_LEVEL (default info).
func New(node string) *logrus.Entry {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	level := logrus.InfoLevel
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		if parsed, err := logrus.ParseLevel(raw); err == nil {
			level = parsed
		}
	}
	l.SetLevel(level)

	return l.WithField("node", node)
}
