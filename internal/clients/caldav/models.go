package caldav

import "time"

// Calendar is one calendar collection on the server.
type Calendar struct {
	Path        string
	DisplayName string
}

// Event is the minimal event shape the engine publishes.
type Event struct {
	UID         string
	Summary     string
	Description string
	StartTime   time.Time
	EndTime     time.Time
}
