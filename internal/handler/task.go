package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ralpholazo24/turi/internal/display"
	"github.com/ralpholazo24/turi/internal/metrics"
	"github.com/ralpholazo24/turi/internal/model"
	"github.com/ralpholazo24/turi/internal/recurrence"
	"github.com/ralpholazo24/turi/internal/rotation"
	"github.com/ralpholazo24/turi/internal/store"
)

type TaskHandler struct {
	tasks    *store.TaskStore
	groups   *store.GroupStore
	settings *store.SettingsStore
	catalog  *display.Catalog
	metrics  *metrics.Metrics
	events   *Events
	logger   *slog.Logger
}

func NewTaskHandler(ts *store.TaskStore, gs *store.GroupStore, ss *store.SettingsStore, catalog *display.Catalog, m *metrics.Metrics, ev *Events, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{tasks: ts, groups: gs, settings: ss, catalog: catalog, metrics: m, events: ev, logger: logger}
}

type taskRequest struct {
	Name      string          `json:"name" validate:"required,max=100"`
	Icon      string          `json:"icon" validate:"max=50"`
	MemberIDs []string        `json:"member_ids" validate:"unique,dive,required"`
	Schedule  recurrence.Rule `json:"schedule"`
}

type membersRequest struct {
	MemberIDs []string `json:"member_ids" validate:"unique,dive,required"`
}

// turnRequest optionally names the index the client saw, so a stale tap
// is rejected instead of rotating twice.
type turnRequest struct {
	ExpectedIndex *int `json:"expected_index" validate:"omitempty,min=0"`
}

// checkSchedule applies the rule's own validation plus the time format.
func checkSchedule(rule recurrence.Rule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	if err := validate.Var(rule.Time, "omitempty,hhmm"); err != nil {
		return errors.New("schedule.time must be HH:MM")
	}
	return nil
}

// load fetches the task or writes the error response.
func (h *TaskHandler) load(w http.ResponseWriter, r *http.Request) (*model.Task, bool) {
	t, err := h.tasks.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.logger.Error("get task", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get task")
		return nil, false
	}
	if t == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return nil, false
	}
	return t, true
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.tasks.ListByGroup(r.Context(), r.PathValue("id"))
	if err != nil {
		h.logger.Error("list tasks", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("id")
	var req taskRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := checkSchedule(req.Schedule); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	g, err := h.groups.Get(r.Context(), groupID)
	if err != nil {
		h.logger.Error("get group", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get group")
		return
	}
	if g == nil {
		writeError(w, http.StatusNotFound, "group not found")
		return
	}

	t, err := h.tasks.Create(r.Context(), groupID, strings.TrimSpace(req.Name), req.Icon, req.Schedule, req.MemberIDs)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusBadRequest, "member not in group")
		return
	}
	if err != nil {
		h.logger.Error("create task", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create task")
		return
	}

	h.events.record(r.Context(), model.ActivityEntry{
		GroupID: groupID,
		Kind:    model.ActivityTaskCreated,
		TaskID:  t.ID,
		Detail:  t.Name,
	})
	h.events.replanTask(r.Context(), groupID, t.ID)
	h.events.broadcast(groupID, "task", "created", t.ID, nil)
	writeJSON(w, http.StatusCreated, t)
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// Update changes name, icon and schedule. Members have their own endpoint.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.load(w, r)
	if !ok {
		return
	}
	var req taskRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := checkSchedule(req.Schedule); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	t, err := h.tasks.Update(r.Context(), existing.ID, strings.TrimSpace(req.Name), req.Icon, req.Schedule)
	if err != nil {
		h.logger.Error("update task", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update task")
		return
	}

	h.events.replanTask(r.Context(), t.GroupID, t.ID)
	h.events.broadcast(t.GroupID, "task", "updated", t.ID, nil)
	writeJSON(w, http.StatusOK, t)
}

// SetMembers replaces the rotation order, keeping the current assignee on
// the hook when they remain.
func (h *TaskHandler) SetMembers(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.load(w, r)
	if !ok {
		return
	}
	var req membersRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	t, err := h.tasks.SetMembers(r.Context(), existing.ID, req.MemberIDs)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusBadRequest, "member not in group")
		return
	}
	if err != nil {
		h.logger.Error("set task members", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to set members")
		return
	}

	h.events.replanTask(r.Context(), t.GroupID, t.ID)
	h.events.broadcast(t.GroupID, "task", "updated", t.ID, nil)
	writeJSON(w, http.StatusOK, t)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	t, ok := h.load(w, r)
	if !ok {
		return
	}
	if err := h.tasks.Delete(r.Context(), t.ID); err != nil {
		h.logger.Error("delete task", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete task")
		return
	}

	h.events.record(r.Context(), model.ActivityEntry{
		GroupID: t.GroupID,
		Kind:    model.ActivityTaskDeleted,
		Detail:  t.Name,
	})
	h.events.replanTask(r.Context(), t.GroupID, t.ID)
	h.events.broadcast(t.GroupID, "task", "deleted", t.ID, nil)
	w.WriteHeader(http.StatusNoContent)
}

// turn loads the task for Done/Skip and checks the optional expected index.
func (h *TaskHandler) turn(w http.ResponseWriter, r *http.Request) (*model.Task, bool) {
	var req turnRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	t, ok := h.load(w, r)
	if !ok {
		return nil, false
	}
	if len(t.MemberIDs) == 0 {
		writeError(w, http.StatusConflict, "task has no members")
		return nil, false
	}
	if req.ExpectedIndex != nil && *req.ExpectedIndex != rotation.Clamp(t.AssignedIndex, len(t.MemberIDs)) {
		h.conflict(w)
		return nil, false
	}
	return t, true
}

func (h *TaskHandler) conflict(w http.ResponseWriter) {
	if h.metrics != nil {
		h.metrics.RotationConflicts.Inc()
	}
	writeError(w, http.StatusConflict, "the turn has already moved on")
}

// Done records a completion by the current assignee and passes the turn.
func (h *TaskHandler) Done(w http.ResponseWriter, r *http.Request) {
	t, ok := h.turn(w, r)
	if !ok {
		return
	}
	members, err := h.groups.ListMembers(r.Context(), t.GroupID)
	if err != nil {
		h.logger.Error("list members", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to complete task")
		return
	}

	res, _ := rotation.MarkDone(*t, members, h.events.now())
	err = h.tasks.RecordCompletion(r.Context(), t.AssignedIndex, res)
	if errors.Is(err, store.ErrConflict) {
		h.conflict(w)
		return
	}
	if err != nil {
		h.logger.Error("record completion", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to complete task")
		return
	}
	if h.metrics != nil {
		h.metrics.Completions.Inc()
	}

	h.events.record(r.Context(), model.ActivityEntry{
		GroupID:  t.GroupID,
		Kind:     model.ActivityCompleted,
		TaskID:   t.ID,
		MemberID: res.Completion.MemberID,
		Detail:   t.Name,
	})
	h.events.replanTask(r.Context(), t.GroupID, t.ID)
	h.events.broadcast(t.GroupID, "task", "completed", t.ID, map[string]any{
		"member_id":      res.Completion.MemberID,
		"assigned_index": res.AssignedIndex,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"completion":     res.Completion,
		"assigned_index": res.AssignedIndex,
		"streak":         res.Streak,
	})
}

// Skip passes the turn to the next member without a completion.
func (h *TaskHandler) Skip(w http.ResponseWriter, r *http.Request) {
	t, ok := h.turn(w, r)
	if !ok {
		return
	}

	res, _ := rotation.SkipTurn(*t, h.events.now())
	err := h.tasks.RecordSkip(r.Context(), t.AssignedIndex, res)
	if errors.Is(err, store.ErrConflict) {
		h.conflict(w)
		return
	}
	if err != nil {
		h.logger.Error("record skip", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to skip turn")
		return
	}
	if h.metrics != nil {
		h.metrics.Skips.Inc()
	}

	h.events.record(r.Context(), model.ActivityEntry{
		GroupID:  t.GroupID,
		Kind:     model.ActivitySkipped,
		TaskID:   t.ID,
		MemberID: res.Skip.MemberID,
		Detail:   t.Name,
	})
	h.events.replanTask(r.Context(), t.GroupID, t.ID)
	h.events.broadcast(t.GroupID, "task", "skipped", t.ID, map[string]any{
		"member_id":      res.Skip.MemberID,
		"assigned_index": res.AssignedIndex,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"skip":           res.Skip,
		"assigned_index": res.AssignedIndex,
	})
}

// Upcoming lists the next ?n= due dates (default 5, at most 52).
func (h *TaskHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	t, ok := h.load(w, r)
	if !ok {
		return
	}
	dates := recurrence.Upcoming(t.Schedule, h.events.now(), queryInt(r, "n", 5, 52))
	if dates == nil {
		dates = []time.Time{}
	}
	writeJSON(w, http.StatusOK, dates)
}

type scheduleEntry struct {
	TaskID       string `json:"task_id"`
	Name         string `json:"name"`
	Icon         string `json:"icon"`
	AssigneeID   string `json:"assignee_id,omitempty"`
	AssigneeName string `json:"assignee_name,omitempty"`
	display.Info
}

// Schedule renders every task of the group for display in the caller's
// language.
func (h *TaskHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("id")
	g, err := h.tasks.Load(r.Context(), groupID)
	if err != nil {
		h.logger.Error("load group", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get schedule")
		return
	}
	if g == nil {
		writeError(w, http.StatusNotFound, "group not found")
		return
	}

	tr := translator(r, h.catalog, h.settings, groupID)
	now := h.events.now()
	entries := make([]scheduleEntry, 0, len(g.Tasks))
	for _, t := range g.Tasks {
		e := scheduleEntry{
			TaskID: t.ID,
			Name:   t.Name,
			Icon:   t.Icon,
			Info:   display.FormatScheduleInfo(t, now, tr),
		}
		if id, ok := rotation.CurrentAssignee(t); ok {
			e.AssigneeID = id
			if m := g.Member(id); m != nil {
				e.AssigneeName = m.Name
			}
		}
		entries = append(entries, e)
	}
	writeJSON(w, http.StatusOK, entries)
}
