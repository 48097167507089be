package caldav

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
)

// Client publishes reminder events to a CalDAV calendar so scheduled
// nudges show up next to the user's normal calendar entries.
type Client struct {
	baseURL      string
	username     string
	password     string
	calendarPath string
	client       *caldav.Client
}

func NewClient(baseURL, username, password string) *Client {
	return &Client{
		baseURL:  baseURL,
		username: username,
		password: password,
	}
}

// IsConfigured returns true if the client has an endpoint and credentials.
func (c *Client) IsConfigured() bool {
	return c.baseURL != "" && c.username != "" && c.password != ""
}

// SetCalendarPath sets the calendar collection to publish into.
func (c *Client) SetCalendarPath(path string) {
	c.calendarPath = path
}

func (c *Client) connect() (*caldav.Client, error) {
	if c.client != nil {
		return c.client, nil
	}

	httpClient := &http.Client{
		Transport: &basicAuthTransport{
			username: c.username,
			password: c.password,
		},
		Timeout: 30 * time.Second,
	}

	client, err := caldav.NewClient(httpClient, c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to CalDAV: %w", err)
	}

	c.client = client
	return client, nil
}

type basicAuthTransport struct {
	username string
	password string
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.username, t.password)
	return http.DefaultTransport.RoundTrip(req)
}

// DiscoverCalendars returns the calendars available to the user.
func (c *Client) DiscoverCalendars(ctx context.Context) ([]Calendar, error) {
	client, err := c.connect()
	if err != nil {
		return nil, err
	}

	principal, err := client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return nil, fmt.Errorf("find principal: %w", err)
	}

	homeSet, err := client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return nil, fmt.Errorf("find home set: %w", err)
	}

	cals, err := client.FindCalendars(ctx, homeSet)
	if err != nil {
		return nil, fmt.Errorf("find calendars: %w", err)
	}

	var result []Calendar
	for _, cal := range cals {
		result = append(result, Calendar{
			Path:        cal.Path,
			DisplayName: cal.Name,
		})
	}
	return result, nil
}

// PutEvent creates or replaces one event (PUT semantics).
func (c *Client) PutEvent(ctx context.Context, event *Event) error {
	client, err := c.connect()
	if err != nil {
		return err
	}

	if c.calendarPath == "" {
		return fmt.Errorf("calendar path not set")
	}
	if event.UID == "" {
		return fmt.Errorf("event uid cannot be empty")
	}

	cal := eventToICS(event)

	if _, err := client.PutCalendarObject(ctx, c.eventPath(event.UID), cal); err != nil {
		return fmt.Errorf("put event: %w", err)
	}
	return nil
}

// DeleteEvent removes an event by UID.
func (c *Client) DeleteEvent(ctx context.Context, uid string) error {
	client, err := c.connect()
	if err != nil {
		return err
	}

	if err := client.RemoveAll(ctx, c.eventPath(uid)); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

func (c *Client) eventPath(uid string) string {
	path := c.calendarPath
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	return path + uid + ".ics"
}

func eventToICS(event *Event) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//GraceBot//Reminders//EN")

	vevent := ical.NewEvent()
	vevent.Props.SetText(ical.PropUID, event.UID)
	vevent.Props.SetText(ical.PropSummary, event.Summary)
	if event.Description != "" {
		vevent.Props.SetText(ical.PropDescription, event.Description)
	}

	vevent.Props.SetDateTime(ical.PropDateTimeStart, event.StartTime.UTC())
	end := event.EndTime
	if end.IsZero() {
		end = event.StartTime.Add(15 * time.Minute)
	}
	vevent.Props.SetDateTime(ical.PropDateTimeEnd, end.UTC())
	vevent.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())

	cal.Children = append(cal.Children, vevent.Component)
	return cal
}
