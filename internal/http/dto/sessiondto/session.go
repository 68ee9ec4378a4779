// Package sessiondto define los DTOs de la gestión de sesiones.
package sessiondto

import "time"

type SessionItem struct {
	ID         string    `json:"id"`
	IP         string    `json:"ip"`
	Device     string    `json:"device"`
	Browser    string    `json:"browser"`
	OS         string    `json:"os"`
	Location   *string   `json:"location,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
	Current    bool      `json:"current"`
}

type ListResponse struct {
	Sessions []SessionItem `json:"sessions"`
}

type KillAllResponse struct {
	Revoked int `json:"revoked"`
}
