package service

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"time"

	"github.com/emersion/go-ical"

	"github.com/antufev/gracebot/internal/clients/caldav"
	"github.com/antufev/gracebot/internal/domain"
	"github.com/antufev/gracebot/internal/storage"
)

// CalendarService renders reminders as calendar events: an ICS export
// for download and best-effort publishing to a CalDAV calendar.
type CalendarService struct {
	storage      *storage.Storage
	caldavClient *caldav.Client
	timezone     *time.Location
}

func NewCalendarService(s *storage.Storage, client *caldav.Client, tz *time.Location) *CalendarService {
	if tz == nil {
		tz = time.UTC
	}
	return &CalendarService{
		storage:      s,
		caldavClient: client,
		timezone:     tz,
	}
}

// IsConfigured returns true if CalDAV publishing is available.
func (s *CalendarService) IsConfigured() bool {
	return s.caldavClient != nil && s.caldavClient.IsConfigured()
}

// ExportUserICS renders a user's active reminders as an iCalendar
// document.
func (s *CalendarService) ExportUserICS(userID string) ([]byte, error) {
	reminders, err := s.storage.ListByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//GraceBot//Reminders//EN")

	for _, r := range reminders {
		event := ical.NewEvent()
		event.Props.SetText(ical.PropUID, r.ID)
		event.Props.SetText(ical.PropSummary, r.Title)
		if r.Message != "" {
			event.Props.SetText(ical.PropDescription, r.Message)
		}
		event.Props.SetDateTime(ical.PropDateTimeStart, r.ScheduledFor.UTC())
		event.Props.SetDateTime(ical.PropDateTimeEnd, r.ScheduledFor.Add(15*time.Minute).UTC())
		event.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
		cal.Children = append(cal.Children, event.Component)
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("encode calendar: %w", err)
	}
	return buf.Bytes(), nil
}

// PublishReminder pushes one reminder to the configured CalDAV
// calendar. Best-effort: failures are logged, the reminder itself is
// already persisted.
func (s *CalendarService) PublishReminder(r *domain.ScheduledReminder) {
	if !s.IsConfigured() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := s.caldavClient.PutEvent(ctx, &caldav.Event{
		UID:         r.ID,
		Summary:     r.Title,
		Description: r.Message,
		StartTime:   r.ScheduledFor,
	})
	if err != nil {
		log.Printf("Error publishing reminder %s to calendar: %v", r.ID, err)
	}
}

// UnpublishReminder removes a cancelled or deactivated reminder's event
// from the calendar. Best-effort, like publishing.
func (s *CalendarService) UnpublishReminder(id string) {
	if !s.IsConfigured() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.caldavClient.DeleteEvent(ctx, id); err != nil {
		log.Printf("Error removing reminder %s from calendar: %v", id, err)
	}
}
