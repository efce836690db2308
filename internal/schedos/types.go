package schedos

import (
	"context"
	"fmt"
	"regexp"
	"runtime"
	"strings"
	"time"

	logx "taskforge/pkg/logx"
)

// TriggerKind is the restricted trigger vocabulary the adapter accepts.
type TriggerKind string

const (
	TriggerOnce  TriggerKind = "once"  // fire once at the next occurrence of At
	TriggerDaily TriggerKind = "daily" // fire every day at At
	TriggerLogon TriggerKind = "logon" // fire when the user logs on / at boot
)

// Trigger is a recurrence rule. At is a 24h wall-clock time "HH:MM" and is
// required for once and daily.
type Trigger struct {
	Kind TriggerKind
	At   string
}

var reHHMM = regexp.MustCompile(`^([01]?\d|2[0-3]):([0-5]\d)$`)

// ParseTrigger validates a kind/time pair from user input.
func ParseTrigger(kind, at string) (Trigger, error) {
	k := TriggerKind(strings.ToLower(strings.TrimSpace(kind)))
	at = strings.TrimSpace(at)
	switch k {
	case TriggerOnce, TriggerDaily:
		if !reHHMM.MatchString(at) {
			return Trigger{}, fmt.Errorf("trigger %q needs a time in HH:MM form, got %q", k, at)
		}
		return Trigger{Kind: k, At: at}, nil
	case TriggerLogon:
		if at != "" {
			return Trigger{}, fmt.Errorf("trigger %q does not take a time", k)
		}
		return Trigger{Kind: k}, nil
	default:
		return Trigger{}, fmt.Errorf("unknown trigger %q (use once, daily or logon)", kind)
	}
}

func (t Trigger) hourMinute() (int, int) {
	m := reHHMM.FindStringSubmatch(t.At)
	if len(m) != 3 {
		return 0, 0
	}
	hh := 0
	for i := 0; i < len(m[1]); i++ {
		hh = hh*10 + int(m[1][i]-'0')
	}
	mm := int(m[2][0]-'0')*10 + int(m[2][1]-'0')
	return hh, mm
}

func (t Trigger) String() string {
	if t.At == "" {
		return string(t.Kind)
	}
	return string(t.Kind) + "@" + t.At
}

// JobSpec is a registration intent.
type JobSpec struct {
	Name    string
	Target  string   // command or script the scheduler should invoke
	Args    []string // extra arguments appended to the target
	Trigger Trigger
}

// JobInfo describes a registered job as reported by the OS scheduler.
type JobInfo struct {
	Name    string
	Target  string
	Trigger string
	NextRun time.Time // zero when the backend cannot compute it
	Raw     string    // backend-native line/row for diagnostics
}

// Scheduler is the management surface of the external OS scheduler.
type Scheduler interface {
	// EnsureRegistered creates the job unless one with the same name already
	// exists; re-running it is a no-op.
	EnsureRegistered(ctx context.Context, spec JobSpec) error

	// List enumerates registered jobs, optionally filtered by name prefix.
	// Only jobs created by this system (its naming convention/tag) are
	// reported.
	List(ctx context.Context, namePrefix string) ([]JobInfo, error)

	// Query looks a single job up by name.
	Query(ctx context.Context, name string) (JobInfo, bool, error)

	// RunNow triggers an immediate run. Unknown names fail with JobNotFound.
	RunNow(ctx context.Context, name string) error

	// Remove deletes the job. Removing an absent job is not an error.
	Remove(ctx context.Context, name string) error
}

// New selects a backend by name; empty picks the native backend for the
// current platform.
func New(backend string, r Runner, log logx.Logger) (Scheduler, error) {
	if r == nil {
		r = ExecRunner{}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	b := strings.ToLower(strings.TrimSpace(backend))
	if b == "" {
		if runtime.GOOS == "windows" {
			b = "schtasks"
		} else {
			b = "crontab"
		}
	}
	switch b {
	case "schtasks":
		return newSchtasks(r, log), nil
	case "crontab", "cron":
		return newCrontab(r, log), nil
	default:
		return nil, fmt.Errorf("unknown scheduler backend %q", backend)
	}
}
