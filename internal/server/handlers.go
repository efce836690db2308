package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"taskforge/internal/schedos"
	"taskforge/internal/store"
	"taskforge/internal/value"
	logx "taskforge/pkg/logx"
)

const maxBodyBytes = 1 << 20

type submitRequest struct {
	Location string `json:"location"`
	Symbol   string `json:"symbol"`
}

func (s *Service) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		httpError(w, http.StatusTooManyRequests, "submission rate exceeded")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		httpError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}

	// The payload carries location/symbol plus the argument section in its
	// canonical {"args":[...],"kwargs":{...}} shape; both are decoded off
	// the same document.
	var req submitRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpError(w, http.StatusBadRequest, "decode payload: "+err.Error())
		return
	}
	args, err := argsFromPayload(body)
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := s.st.CreateTask(r.Context(), req.Location, req.Symbol, args)
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.log.Info("task submitted",
		logx.String("task", id),
		logx.String("location", req.Location),
		logx.String("symbol", req.Symbol))
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func argsFromPayload(body []byte) (value.Args, error) {
	doc, err := value.FromJSON(body)
	if err != nil {
		return value.Args{}, err
	}
	var args value.Args
	if v, ok := doc.Lookup("args"); ok {
		if v.Kind() != value.KindSeq && !v.IsNull() {
			return value.Args{}, errors.New("args must be a sequence")
		}
		args.Positional = v.Items()
	}
	if v, ok := doc.Lookup("kwargs"); ok {
		if v.Kind() != value.KindMap && !v.IsNull() {
			return value.Args{}, errors.New("kwargs must be a mapping")
		}
		args.Named = v.Entries()
	}
	return args, nil
}

func (s *Service) handleGetTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.st.GetTask(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		httpError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Service) handleListTasks(w http.ResponseWriter, r *http.Request) {
	f := store.Filter{State: store.State(r.URL.Query().Get("state"))}
	tasks, err := s.st.ListTasks(r.Context(), f)
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if tasks == nil {
		tasks = []store.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

type jobView struct {
	Name    string `json:"name"`
	Target  string `json:"target"`
	Trigger string `json:"trigger"`
	NextRun string `json:"next_run,omitempty"`
}

func (s *Service) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.sched.List(r.Context(), r.URL.Query().Get("prefix"))
	if err != nil {
		s.schedError(w, err)
		return
	}
	out := make([]jobView, 0, len(jobs))
	for _, j := range jobs {
		v := jobView{Name: j.Name, Target: j.Target, Trigger: j.Trigger}
		if !j.NextRun.IsZero() {
			v.NextRun = j.NextRun.Format("2006-01-02 15:04")
		}
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Service) handleRunJob(w http.ResponseWriter, r *http.Request) {
	if err := s.sched.RunNow(r.Context(), r.PathValue("name")); err != nil {
		s.schedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "triggered"})
}

func (s *Service) handleRemoveJob(w http.ResponseWriter, r *http.Request) {
	if err := s.sched.Remove(r.Context(), r.PathValue("name")); err != nil {
		s.schedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (s *Service) schedError(w http.ResponseWriter, err error) {
	switch schedos.KindOf(err) {
	case schedos.KindJobNotFound:
		httpError(w, http.StatusNotFound, err.Error())
	case schedos.KindPermission:
		httpError(w, http.StatusForbidden, err.Error())
	default:
		httpError(w, http.StatusBadGateway, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
