package service

import (
	"encoding/json"

	"github.com/azadjordan/megadie-sub000/internal/model"
	ws "github.com/azadjordan/megadie-sub000/internal/websocket"

	"github.com/google/uuid"
)

// Actor identifies the authenticated caller for ownership checks
type Actor struct {
	ID      uuid.UUID
	IsAdmin bool
}

// CanAccess reports whether the actor may read a resource owned by ownerID
func (a Actor) CanAccess(ownerID uuid.UUID) bool {
	return a.IsAdmin || a.ID == ownerID
}

// auditEntry builds an AuditLog row for an admin action. Details are
// serialized to JSON; marshal failures degrade to an empty payload rather
// than failing the business operation.
func auditEntry(actorID uuid.UUID, action, entityID, entityName string, details interface{}) *model.AuditLog {
	var uid *uuid.UUID
	if actorID != uuid.Nil {
		uid = &actorID
	}

	payload, _ := json.Marshal(details)
	return &model.AuditLog{
		UserID:     uid,
		Action:     action,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    string(payload),
	}
}

// DashboardEvent is the JSON payload broadcast to admin websocket clients
type DashboardEvent struct {
	Event string                 `json:"event"`
	Data  map[string]interface{} `json:"data"`
}

// broadcast pushes an event to the hub if one is wired. Services pass a nil
// hub in tests.
func broadcast(hub *ws.Hub, event string, data map[string]interface{}) {
	if hub == nil {
		return
	}
	msg, err := json.Marshal(DashboardEvent{Event: event, Data: data})
	if err != nil {
		return
	}
	hub.Broadcast <- msg
}
