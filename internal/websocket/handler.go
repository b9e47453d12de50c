package websocket

import (
	"context"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/ralpholazo24/turi/internal/model"
)

// GroupGetter looks up a group by ID, returning nil when it does not exist.
type GroupGetter interface {
	Get(ctx context.Context, id string) (*model.Group, error)
}

// HandleWebSocket upgrades GET /ws?group=<id> and streams that group's
// updates until the client goes away.
func HandleWebSocket(hub *Hub, groups GroupGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		groupID := r.URL.Query().Get("group")
		if groupID == "" {
			http.Error(w, "group is required", http.StatusBadRequest)
			return
		}
		g, err := groups.Get(r.Context(), groupID)
		if err != nil {
			hub.logger.Error("look up group", "group_id", groupID, "error", err)
			http.Error(w, "failed to get group", http.StatusInternalServerError)
			return
		}
		if g == nil {
			http.Error(w, "group not found", http.StatusNotFound)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true, // household LAN, any origin
		})
		if err != nil {
			hub.logger.Warn("accept websocket", "error", err)
			return
		}
		defer conn.CloseNow()

		NewClient(hub, conn, groupID).Run(r.Context())
	}
}
