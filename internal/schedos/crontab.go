package schedos

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	logx "taskforge/pkg/logx"
)

// crontabScheduler manages entries in the user's crontab through the
// crontab CLI. Entries carry a name marker comment so the adapter only ever
// touches its own lines.
type crontabScheduler struct {
	r   Runner
	log logx.Logger
}

const cronMarker = "# taskforge:"

func newCrontab(r Runner, log logx.Logger) *crontabScheduler {
	return &crontabScheduler{r: r, log: log}
}

type cronEntry struct {
	expr string
	cmd  string
	name string
	raw  string
}

func (c *crontabScheduler) EnsureRegistered(ctx context.Context, spec JobSpec) error {
	expr, err := triggerToCron(spec.Trigger)
	if err != nil {
		return err
	}

	lines, err := c.load(ctx)
	if err != nil {
		return err
	}
	for _, line := range lines {
		if e, ok := parseCronEntry(line); ok && e.name == spec.Name {
			c.log.Debug("job already registered", logx.String("job", spec.Name))
			return nil
		}
	}

	line := expr + " " + commandLine(spec.Target, spec.Args) + " " + cronMarker + spec.Name
	if err := c.save(ctx, append(lines, line)); err != nil {
		return err
	}
	c.log.Info("job registered", logx.String("job", spec.Name), logx.String("trigger", spec.Trigger.String()))
	return nil
}

func (c *crontabScheduler) List(ctx context.Context, namePrefix string) ([]JobInfo, error) {
	lines, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	var out []JobInfo
	for _, line := range lines {
		e, ok := parseCronEntry(line)
		if !ok || !strings.HasPrefix(e.name, namePrefix) {
			continue
		}
		out = append(out, e.info())
	}
	return out, nil
}

func (c *crontabScheduler) Query(ctx context.Context, name string) (JobInfo, bool, error) {
	lines, err := c.load(ctx)
	if err != nil {
		return JobInfo{}, false, err
	}
	for _, line := range lines {
		if e, ok := parseCronEntry(line); ok && e.name == name {
			return e.info(), true, nil
		}
	}
	return JobInfo{}, false, nil
}

// RunNow executes the job's command immediately through the shell; cron has
// no native on-demand trigger.
func (c *crontabScheduler) RunNow(ctx context.Context, name string) error {
	lines, err := c.load(ctx)
	if err != nil {
		return err
	}
	for _, line := range lines {
		if e, ok := parseCronEntry(line); ok && e.name == name {
			_, stderr, code, err := c.r.Run(ctx, "", "sh", "-c", e.cmd)
			if err != nil {
				return schedErr(KindUnavailable, "run", name, err)
			}
			if code != 0 {
				return fmt.Errorf("job %s exited with code %d: %s", name, code, strings.TrimSpace(stderr))
			}
			return nil
		}
	}
	return schedErr(KindJobNotFound, "run", name, nil)
}

func (c *crontabScheduler) Remove(ctx context.Context, name string) error {
	lines, err := c.load(ctx)
	if err != nil {
		return err
	}
	kept := lines[:0]
	removed := false
	for _, line := range lines {
		if e, ok := parseCronEntry(line); ok && e.name == name {
			removed = true
			continue
		}
		kept = append(kept, line)
	}
	if !removed {
		// Absent job: idempotent delete.
		return nil
	}
	if err := c.save(ctx, kept); err != nil {
		return err
	}
	c.log.Info("job removed", logx.String("job", name))
	return nil
}

func (c *crontabScheduler) load(ctx context.Context) ([]string, error) {
	stdout, stderr, code, err := c.r.Run(ctx, "", "crontab", "-l")
	if err != nil {
		return nil, schedErr(KindUnavailable, "load", "", err)
	}
	if code != 0 {
		if strings.Contains(strings.ToLower(stderr), "no crontab") {
			return nil, nil
		}
		return nil, c.classify("load", stderr)
	}
	var lines []string
	for _, line := range strings.Split(stdout, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

func (c *crontabScheduler) save(ctx context.Context, lines []string) error {
	body := strings.Join(lines, "\n")
	if body != "" {
		body += "\n"
	}
	_, stderr, code, err := c.r.Run(ctx, body, "crontab", "-")
	if err != nil {
		return schedErr(KindUnavailable, "save", "", err)
	}
	if code != 0 {
		return c.classify("save", stderr)
	}
	return nil
}

func (c *crontabScheduler) classify(op, stderr string) error {
	low := strings.ToLower(stderr)
	if strings.Contains(low, "not allowed") || strings.Contains(low, "permission denied") {
		return schedErr(KindPermission, op, "", fmt.Errorf("%s", strings.TrimSpace(stderr)))
	}
	return schedErr(KindUnavailable, op, "", fmt.Errorf("%s", strings.TrimSpace(stderr)))
}

// triggerToCron translates the trigger vocabulary into cron grammar.
func triggerToCron(t Trigger) (string, error) {
	switch t.Kind {
	case TriggerDaily:
		hh, mm := t.hourMinute()
		expr := fmt.Sprintf("%d %d * * *", mm, hh)
		if _, err := cron.ParseStandard(expr); err != nil {
			return "", fmt.Errorf("crontab: bad daily trigger %q: %w", t.At, err)
		}
		return expr, nil
	case TriggerLogon:
		return "@reboot", nil
	case TriggerOnce:
		// cron grammar has no one-shot trigger; that intent belongs to the
		// platform's one-time scheduler (schtasks ONCE, at(1)).
		return "", fmt.Errorf("crontab: one-time triggers are not expressible in cron grammar")
	default:
		return "", fmt.Errorf("crontab: unsupported trigger %q", t.Kind)
	}
}

func parseCronEntry(line string) (cronEntry, bool) {
	idx := strings.LastIndex(line, cronMarker)
	if idx < 0 {
		return cronEntry{}, false
	}
	name := strings.TrimSpace(line[idx+len(cronMarker):])
	head := strings.TrimSpace(line[:idx])
	if name == "" || head == "" {
		return cronEntry{}, false
	}

	var expr, cmd string
	if rest, ok := strings.CutPrefix(head, "@reboot"); ok {
		expr = "@reboot"
		cmd = strings.TrimSpace(rest)
	} else {
		fields := strings.Fields(head)
		if len(fields) < 6 {
			return cronEntry{}, false
		}
		expr = strings.Join(fields[:5], " ")
		cmd = strings.Join(fields[5:], " ")
	}
	if cmd == "" {
		return cronEntry{}, false
	}
	return cronEntry{expr: expr, cmd: cmd, name: name, raw: line}, true
}

func (e cronEntry) info() JobInfo {
	info := JobInfo{Name: e.name, Target: e.cmd, Trigger: e.expr, Raw: e.raw}
	if e.expr != "@reboot" {
		if sched, err := cron.ParseStandard(e.expr); err == nil {
			info.NextRun = sched.Next(time.Now())
		}
	}
	return info
}
