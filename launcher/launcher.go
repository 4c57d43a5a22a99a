// Package launcher turns the account registry into a running topology: one
// isolated OS process per enabled account, supervised until it exits. The
// terminal APIs allow a single live connection per process, so isolation is
// mandatory, not an optimization.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rustyeddy/copytrader/store"
)

// ChildState tracks one supervised process.
type ChildState int

const (
	Starting ChildState = iota
	Running
	Exited
)

func (s ChildState) String() string {
	switch s {
	case Starting:
		return "starting"
	case Running:
		return "running"
	default:
		return "exited"
	}
}

type Child struct {
	Account  store.Account
	Cmd      *exec.Cmd
	State    ChildState
	ExitCode int
}

type exitEvent struct {
	name string
	code int
}

type Config struct {
	// Executable is the binary spawned for node processes. Empty means
	// re-exec the launcher's own binary with the master/slave subcommand.
	Executable string
	// ConfigPath is forwarded to children via --config when set.
	ConfigPath        string
	GraceDelay        time.Duration
	ShutdownTimeout   time.Duration
	SuperviseInterval time.Duration
}

type Launcher struct {
	st       store.Store
	cfg      Config
	children map[string]*Child
	exits    chan exitEvent
	log      *logrus.Entry
}

func New(st store.Store, cfg Config, log *logrus.Entry) *Launcher {
	return &Launcher{
		st:       st,
		cfg:      cfg,
		children: make(map[string]*Child),
		exits:    make(chan exitEvent, 16),
		log:      log,
	}
}

// Partition splits accounts into master and slave groups, preserving order.
func Partition(accounts []store.Account) (masters, slaves []store.Account) {
	for _, a := range accounts {
		if a.Type == store.Master {
			masters = append(masters, a)
		} else {
			slaves = append(slaves, a)
		}
	}
	return masters, slaves
}

// Run boots and supervises the whole topology. It returns when the context
// is cancelled or when every child has exited.
func (l *Launcher) Run(ctx context.Context) error {
	if err := l.st.Ping(ctx); err != nil {
		return fmt.Errorf("store unreachable: %w", err)
	}

	accounts, err := l.st.EnabledAccounts(ctx)
	if err != nil {
		return fmt.Errorf("load accounts: %w", err)
	}
	if len(accounts) == 0 {
		return errors.New("no enabled accounts found")
	}

	masters, slaves := Partition(accounts)
	l.log.WithFields(logrus.Fields{
		"masters": len(masters),
		"slaves":  len(slaves),
	}).Info("starting topology")

	for _, acct := range masters {
		if err := l.spawn(acct); err != nil {
			l.log.WithError(err).WithField("account", acct.Name).Error("spawn failed")
		}
	}

	// Give the publishers time to bind before any subscriber connects.
	select {
	case <-ctx.Done():
		l.shutdown()
		return nil
	case <-time.After(l.cfg.GraceDelay):
	}

	for _, acct := range slaves {
		if err := l.spawn(acct); err != nil {
			l.log.WithError(err).WithField("account", acct.Name).Error("spawn failed")
		}
	}

	if len(l.children) == 0 {
		return errors.New("no processes started")
	}
	l.log.Info("all processes started")

	l.supervise(ctx)
	l.shutdown()
	return nil
}

func (l *Launcher) executable() (string, error) {
	if l.cfg.Executable != "" {
		return l.cfg.Executable, nil
	}
	return os.Executable()
}

func (l *Launcher) spawn(acct store.Account) error {
	bin, err := l.executable()
	if err != nil {
		return err
	}

	sub := "slave"
	if acct.Type == store.Master {
		sub = "master"
	}
	args := []string{sub, "--name", acct.Name, "--path", acct.Path}
	if l.cfg.ConfigPath != "" {
		args = append(args, "--config", l.cfg.ConfigPath)
	}

	cmd := exec.Command(bin, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	child := &Child{Account: acct, Cmd: cmd, State: Starting}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", acct.Name, err)
	}
	child.State = Running
	l.children[acct.Name] = child

	l.log.WithFields(logrus.Fields{
		"account": acct.Name,
		"type":    string(acct.Type),
		"pid":     cmd.Process.Pid,
	}).Info("spawned process")

	// Wait must run somewhere to reap the child; the supervisory loop
	// consumes the result and is the only writer of the handle table.
	go func(name string) {
		_ = cmd.Wait()
		l.exits <- exitEvent{name: name, code: cmd.ProcessState.ExitCode()}
	}(acct.Name)

	return nil
}

// supervise owns the child table. Exits are logged and the child dropped;
// there is no automatic restart — a dead account stays dead until an
// operator intervenes.
func (l *Launcher) supervise(ctx context.Context) {
	ticker := time.NewTicker(l.cfg.SuperviseInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.log.Info("shutdown requested")
			return
		case ev := <-l.exits:
			child, ok := l.children[ev.name]
			if !ok {
				continue
			}
			child.State = Exited
			child.ExitCode = ev.code
			l.log.WithFields(logrus.Fields{
				"account": ev.name,
				"code":    ev.code,
			}).Warn("process exited")
			delete(l.children, ev.name)

			if len(l.children) == 0 {
				l.log.Info("all processes exited")
				return
			}
		case <-ticker.C:
			l.log.WithField("children", len(l.children)).Debug("supervising")
		}
	}
}

// shutdown asks every remaining child to terminate, waits out the grace
// window, then force-kills stragglers. All handles are released before
// returning.
func (l *Launcher) shutdown() {
	for name, child := range l.children {
		l.log.WithFields(logrus.Fields{
			"account": name,
			"pid":     child.Cmd.Process.Pid,
		}).Info("terminating process")
		if err := child.Cmd.Process.Signal(syscall.SIGTERM); err != nil {
			_ = child.Cmd.Process.Kill()
		}
	}

	deadline := time.After(l.cfg.ShutdownTimeout)
	for len(l.children) > 0 {
		select {
		case ev := <-l.exits:
			delete(l.children, ev.name)
		case <-deadline:
			for name, child := range l.children {
				l.log.WithField("account", name).Warn("force killing process")
				_ = child.Cmd.Process.Kill()
				delete(l.children, name)
			}
		}
	}

	l.log.Info("all processes stopped")
}
