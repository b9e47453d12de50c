package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/ralpholazo24/turi/internal/display"
	"github.com/ralpholazo24/turi/internal/model"
	"github.com/ralpholazo24/turi/internal/store"
)

type GroupHandler struct {
	groups   *store.GroupStore
	tasks    *store.TaskStore
	settings *store.SettingsStore
	events   *Events
	logger   *slog.Logger
}

func NewGroupHandler(gs *store.GroupStore, ts *store.TaskStore, ss *store.SettingsStore, ev *Events, logger *slog.Logger) *GroupHandler {
	return &GroupHandler{groups: gs, tasks: ts, settings: ss, events: ev, logger: logger}
}

type groupRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

type memberRequest struct {
	Name        string `json:"name" validate:"required,max=50"`
	AvatarColor string `json:"avatar_color" validate:"omitempty,hexcolor"`
}

type settingsRequest struct {
	ReminderMinutes *int    `json:"reminder_minutes" validate:"omitempty,min=0,max=1440"`
	Locale          *string `json:"locale" validate:"omitempty,bcp47_language_tag"`
}

const defaultAvatarColor = "#3B82F6"

func (h *GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	groups, err := h.groups.List(r.Context())
	if err != nil {
		h.logger.Error("list groups", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list groups")
		return
	}
	if groups == nil {
		groups = []model.Group{}
	}
	writeJSON(w, http.StatusOK, groups)
}

func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	g, err := h.groups.Create(r.Context(), strings.TrimSpace(req.Name))
	if err != nil {
		h.logger.Error("create group", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create group")
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

// Get returns the group with its members and tasks.
func (h *GroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	g, err := h.tasks.Load(r.Context(), r.PathValue("id"))
	if err != nil {
		h.logger.Error("load group", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get group")
		return
	}
	if g == nil {
		writeError(w, http.StatusNotFound, "group not found")
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (h *GroupHandler) Rename(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req groupRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	g, err := h.groups.Rename(r.Context(), id, strings.TrimSpace(req.Name))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "group not found")
		return
	}
	if err != nil {
		h.logger.Error("rename group", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to rename group")
		return
	}

	h.events.broadcast(id, "group", "updated", id, nil)
	writeJSON(w, http.StatusOK, g)
}

func (h *GroupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := h.groups.Delete(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "group not found")
		return
	}
	if err != nil {
		h.logger.Error("delete group", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete group")
		return
	}

	h.events.broadcast(id, "group", "deleted", id, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (h *GroupHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("id")
	var req memberRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.AvatarColor == "" {
		req.AvatarColor = defaultAvatarColor
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

	m, err := h.groups.AddMember(r.Context(), groupID, strings.TrimSpace(req.Name), req.AvatarColor)
	if err != nil {
		h.logger.Error("add member", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to add member")
		return
	}

	h.events.record(r.Context(), model.ActivityEntry{
		GroupID:  groupID,
		Kind:     model.ActivityMemberAdded,
		MemberID: m.ID,
		Detail:   m.Name,
	})
	h.events.broadcast(groupID, "member", "created", m.ID, nil)
	writeJSON(w, http.StatusCreated, m)
}

func (h *GroupHandler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req memberRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.AvatarColor == "" {
		req.AvatarColor = defaultAvatarColor
	}

	m, err := h.groups.UpdateMember(r.Context(), id, strings.TrimSpace(req.Name), req.AvatarColor)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "member not found")
		return
	}
	if err != nil {
		h.logger.Error("update member", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update member")
		return
	}

	// Reminder bodies carry the assignee's name.
	h.events.replanGroup(r.Context(), m.GroupID)
	h.events.broadcast(m.GroupID, "member", "updated", m.ID, nil)
	writeJSON(w, http.StatusOK, m)
}

// RemoveMember deletes the member and takes them out of every rotation.
func (h *GroupHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	m, err := h.groups.GetMember(r.Context(), id)
	if err != nil {
		h.logger.Error("get member", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get member")
		return
	}
	if m == nil {
		writeError(w, http.StatusNotFound, "member not found")
		return
	}

	if err := h.groups.RemoveMember(r.Context(), id); err != nil {
		h.logger.Error("remove member", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to remove member")
		return
	}

	h.events.record(r.Context(), model.ActivityEntry{
		GroupID: m.GroupID,
		Kind:    model.ActivityMemberRemoved,
		Detail:  m.Name,
	})
	h.events.replanGroup(r.Context(), m.GroupID)
	h.events.broadcast(m.GroupID, "member", "deleted", m.ID, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (h *GroupHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	all, err := h.settings.GetAll(r.Context(), r.PathValue("id"))
	if err != nil {
		h.logger.Error("get settings", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get settings")
		return
	}
	writeJSON(w, http.StatusOK, all)
}

// UpdateSettings changes the reminder lead time or locale and re-plans the
// group's reminders.
func (h *GroupHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("id")
	var req settingsRequest
	if err := decode(r, &req); err != nil {
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

	if req.ReminderMinutes != nil {
		err = h.settings.Set(r.Context(), groupID, model.SettingReminderMinutes, strconv.Itoa(*req.ReminderMinutes))
	}
	if err == nil && req.Locale != nil {
		err = h.settings.Set(r.Context(), groupID, model.SettingLocale, *req.Locale)
	}
	if err != nil {
		h.logger.Error("update settings", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update settings")
		return
	}

	h.events.replanGroup(r.Context(), groupID)
	h.events.broadcast(groupID, "settings", "updated", groupID, nil)

	all, err := h.settings.GetAll(r.Context(), groupID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get settings")
		return
	}
	writeJSON(w, http.StatusOK, all)
}

// Activity returns the newest entries first; ?limit= caps the count.
func (h *GroupHandler) Activity(w http.ResponseWriter, r *http.Request) {
	entries, err := h.events.activity.List(r.Context(), r.PathValue("id"), queryInt(r, "limit", 50, 500))
	if err != nil {
		h.logger.Error("list activity", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list activity")
		return
	}
	if entries == nil {
		entries = []model.ActivityEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// translator picks the language from ?lang=, then the group setting, then
// Accept-Language.
func translator(r *http.Request, catalog *display.Catalog, settings *store.SettingsStore, groupID string) display.Translator {
	prefs := []string{r.URL.Query().Get("lang")}
	if locale, ok, err := settings.Get(r.Context(), groupID, model.SettingLocale); err == nil && ok {
		prefs = append(prefs, locale)
	}
	prefs = append(prefs, r.Header.Get("Accept-Language"))
	return catalog.For(prefs...)
}
