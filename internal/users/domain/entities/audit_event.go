package entities

import "time"

// AuditEvent - неизменяемое событие аудита.
type AuditEvent struct {
	ID        int64
	Principal string
	EventDate time.Time
	EventType string
	Data      map[string]string
}
