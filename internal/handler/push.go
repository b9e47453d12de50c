package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/ralpholazo24/turi/internal/model"
	"github.com/ralpholazo24/turi/internal/push"
	"github.com/ralpholazo24/turi/internal/store"
)

type PushHandler struct {
	pushStore *store.PushStore
	groups    *store.GroupStore
	service   *push.Service
	logger    *slog.Logger
}

func NewPushHandler(ps *store.PushStore, gs *store.GroupStore, svc *push.Service, logger *slog.Logger) *PushHandler {
	return &PushHandler{pushStore: ps, groups: gs, service: svc, logger: logger}
}

type subscribeRequest struct {
	Endpoint   string `json:"endpoint" validate:"required,url"`
	P256dh     string `json:"p256dh" validate:"required"`
	Auth       string `json:"auth" validate:"required"`
	DeviceName string `json:"device_name" validate:"max=100"`
}

// Subscribe handles POST /api/groups/{id}/push/subscribe. Re-subscribing
// the same endpoint moves it to this group.
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("id")
	var req subscribeRequest
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

	sub, err := h.pushStore.CreateSubscription(r.Context(), groupID, req.Endpoint, req.P256dh, req.Auth, req.DeviceName)
	if err != nil {
		h.logger.Error("create push subscription", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save subscription")
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

// Unsubscribe handles DELETE /api/groups/{id}/push/subscriptions/{sub}.
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	err := h.pushStore.DeleteSubscription(r.Context(), r.PathValue("sub"), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "subscription not found")
		return
	}
	if err != nil {
		h.logger.Error("delete push subscription", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete subscription")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PushHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.pushStore.ListByGroup(r.Context(), r.PathValue("id"))
	if err != nil {
		h.logger.Error("list push subscriptions", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list subscriptions")
		return
	}
	if subs == nil {
		subs = []model.PushSubscription{}
	}
	writeJSON(w, http.StatusOK, subs)
}

// GetVAPIDKey handles GET /api/push/vapid-key.
func (h *PushHandler) GetVAPIDKey(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"public_key": h.service.VAPIDPublicKey()})
}

// TestNotification sends a test push to every device of the group.
func (h *PushHandler) TestNotification(w http.ResponseWriter, r *http.Request) {
	subs, err := h.pushStore.ListByGroup(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list subscriptions")
		return
	}

	payload := push.Payload{
		Title: "Test notification",
		Body:  "Reminders are working.",
		Tag:   "test",
	}
	sent := 0
	for i := range subs {
		if err := h.service.Send(r.Context(), &subs[i], payload); err != nil {
			h.logger.Warn("test push send", "subscription_id", subs[i].ID, "error", err)
			continue
		}
		sent++
	}
	writeJSON(w, http.StatusOK, map[string]int{"sent": sent})
}
