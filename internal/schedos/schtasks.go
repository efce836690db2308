package schedos

import (
	"context"
	"encoding/csv"
	"fmt"
	"strings"

	logx "taskforge/pkg/logx"
)

// schtasksScheduler manages Windows Task Scheduler jobs through the
// schtasks.exe CLI. Jobs live under a dedicated folder so list/remove only
// ever touch what this system created.
type schtasksScheduler struct {
	r   Runner
	log logx.Logger
}

const taskFolder = `\taskforge`

func newSchtasks(r Runner, log logx.Logger) *schtasksScheduler {
	return &schtasksScheduler{r: r, log: log}
}

func (s *schtasksScheduler) fullName(name string) string {
	if strings.HasPrefix(name, `\`) {
		return name
	}
	return taskFolder + `\` + name
}

func (s *schtasksScheduler) EnsureRegistered(ctx context.Context, spec JobSpec) error {
	full := s.fullName(spec.Name)

	_, stderr, code, err := s.r.Run(ctx, "", "schtasks", "/Query", "/TN", full)
	if err != nil {
		return schedErr(KindUnavailable, "query", spec.Name, err)
	}
	if code == 0 {
		s.log.Debug("job already registered", logx.String("job", full))
		return nil
	}
	if !isNotFoundMsg(stderr) {
		return s.classify("query", spec.Name, stderr, nil)
	}

	args := []string{"/Create", "/TN", full, "/TR", commandLine(spec.Target, spec.Args), "/F"}
	switch spec.Trigger.Kind {
	case TriggerOnce:
		args = append(args, "/SC", "ONCE", "/ST", spec.Trigger.At)
	case TriggerDaily:
		args = append(args, "/SC", "DAILY", "/ST", spec.Trigger.At)
	case TriggerLogon:
		args = append(args, "/SC", "ONLOGON")
	default:
		return fmt.Errorf("schtasks: unsupported trigger %q", spec.Trigger.Kind)
	}

	_, stderr, code, err = s.r.Run(ctx, "", "schtasks", args...)
	if err != nil {
		return schedErr(KindUnavailable, "create", spec.Name, err)
	}
	if code != 0 {
		return s.classify("create", spec.Name, stderr, nil)
	}
	s.log.Info("job registered", logx.String("job", full), logx.String("trigger", spec.Trigger.String()))
	return nil
}

func (s *schtasksScheduler) List(ctx context.Context, namePrefix string) ([]JobInfo, error) {
	stdout, stderr, code, err := s.r.Run(ctx, "", "schtasks", "/Query", "/V", "/FO", "CSV")
	if err != nil {
		return nil, schedErr(KindUnavailable, "list", "", err)
	}
	if code != 0 {
		return nil, s.classify("list", "", stderr, nil)
	}

	rows, err := parseSchtasksCSV(stdout)
	if err != nil {
		return nil, schedErr(KindUnavailable, "list", "", err)
	}

	wantPrefix := taskFolder + `\` + namePrefix
	var out []JobInfo
	for _, row := range rows {
		full := row["TaskName"]
		if !strings.HasPrefix(full, wantPrefix) {
			continue
		}
		out = append(out, jobInfoFromRow(full, row))
	}
	return out, nil
}

func (s *schtasksScheduler) Query(ctx context.Context, name string) (JobInfo, bool, error) {
	full := s.fullName(name)
	stdout, stderr, code, err := s.r.Run(ctx, "", "schtasks", "/Query", "/TN", full, "/V", "/FO", "CSV")
	if err != nil {
		return JobInfo{}, false, schedErr(KindUnavailable, "query", name, err)
	}
	if code != 0 {
		if isNotFoundMsg(stderr) {
			return JobInfo{}, false, nil
		}
		return JobInfo{}, false, s.classify("query", name, stderr, nil)
	}
	rows, err := parseSchtasksCSV(stdout)
	if err != nil || len(rows) == 0 {
		return JobInfo{}, false, schedErr(KindUnavailable, "query", name, err)
	}
	return jobInfoFromRow(rows[0]["TaskName"], rows[0]), true, nil
}

func (s *schtasksScheduler) RunNow(ctx context.Context, name string) error {
	full := s.fullName(name)
	_, stderr, code, err := s.r.Run(ctx, "", "schtasks", "/Run", "/TN", full)
	if err != nil {
		return schedErr(KindUnavailable, "run", name, err)
	}
	if code != 0 {
		if isNotFoundMsg(stderr) {
			return schedErr(KindJobNotFound, "run", name, nil)
		}
		return s.classify("run", name, stderr, nil)
	}
	return nil
}

func (s *schtasksScheduler) Remove(ctx context.Context, name string) error {
	full := s.fullName(name)
	_, stderr, code, err := s.r.Run(ctx, "", "schtasks", "/Delete", "/TN", full, "/F")
	if err != nil {
		return schedErr(KindUnavailable, "remove", name, err)
	}
	if code != 0 {
		if isNotFoundMsg(stderr) {
			// Absent job: idempotent delete.
			return nil
		}
		return s.classify("remove", name, stderr, nil)
	}
	s.log.Info("job removed", logx.String("job", full))
	return nil
}

func (s *schtasksScheduler) classify(op, name, stderr string, err error) error {
	low := strings.ToLower(stderr)
	switch {
	case strings.Contains(low, "access is denied") || strings.Contains(low, "denied"):
		return schedErr(KindPermission, op, name, fmt.Errorf("%s", strings.TrimSpace(stderr)))
	default:
		return schedErr(KindUnavailable, op, name, fmt.Errorf("%s", strings.TrimSpace(stderr)))
	}
}

func isNotFoundMsg(stderr string) bool {
	low := strings.ToLower(stderr)
	return strings.Contains(low, "cannot find") || strings.Contains(low, "does not exist")
}

// commandLine joins target and args, quoting anything with spaces, the same
// way the scheduler expects a /TR value.
func commandLine(target string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, quoteIfNeeded(target))
	for _, a := range args {
		parts = append(parts, quoteIfNeeded(a))
	}
	return strings.Join(parts, " ")
}

func quoteIfNeeded(s string) string {
	if strings.ContainsAny(s, " \t") {
		return `"` + s + `"`
	}
	return s
}

// parseSchtasksCSV parses /FO CSV output into header-keyed rows. Verbose
// output repeats the header per task folder; repeated headers are skipped.
func parseSchtasksCSV(raw string) ([]map[string]string, error) {
	rd := csv.NewReader(strings.NewReader(raw))
	rd.FieldsPerRecord = -1

	records, err := rd.ReadAll()
	if err != nil {
		return nil, err
	}
	var header []string
	var rows []map[string]string
	for _, rec := range records {
		if len(rec) == 0 {
			continue
		}
		if rec[0] == "TaskName" || rec[0] == "HostName" {
			header = rec
			continue
		}
		if header == nil || len(rec) != len(header) {
			continue
		}
		row := make(map[string]string, len(header))
		for i, h := range header {
			row[h] = rec[i]
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func jobInfoFromRow(full string, row map[string]string) JobInfo {
	name := full
	if i := strings.LastIndex(full, `\`); i >= 0 {
		name = full[i+1:]
	}
	return JobInfo{
		Name:    name,
		Target:  row["Task To Run"],
		Trigger: row["Schedule Type"],
		Raw:     row["TaskName"] + " | " + row["Next Run Time"] + " | " + row["Status"],
	}
}
