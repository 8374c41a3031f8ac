// Package gcal exports trips and dated tasks to a Google Calendar as
// all-day events.
package gcal

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
)

// Calendar is the slice of the Calendar API the syncer needs.
type Calendar interface {
	Get(ctx context.Context, eventID string) (*calendar.Event, error)
	FindByKey(ctx context.Context, key string) (*calendar.Event, error)
	Insert(ctx context.Context, event *calendar.Event) (*calendar.Event, error)
	Patch(ctx context.Context, eventID string, patch *calendar.Event) (*calendar.Event, error)
	Delete(ctx context.Context, eventID string) error
}

// CalendarClient talks to one calendar of an authenticated service.
type CalendarClient struct {
	srv        *calendar.Service
	calendarID string
}

var _ Calendar = (*CalendarClient)(nil)

func NewCalendarClient(srv *calendar.Service, calendarID string) *CalendarClient {
	return &CalendarClient{srv: srv, calendarID: calendarID}
}

// Open finds the calendar whose summary is calendarName.
func Open(ctx context.Context, srv *calendar.Service, calendarName string) (*CalendarClient, error) {
	list, err := srv.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve calendar list: %w", err)
	}
	for _, item := range list.Items {
		if item.Summary == calendarName {
			return NewCalendarClient(srv, item.Id), nil
		}
	}
	return nil, fmt.Errorf("calendar %q not found", calendarName)
}

func (c *CalendarClient) Get(ctx context.Context, eventID string) (*calendar.Event, error) {
	return c.srv.Events.Get(c.calendarID, eventID).Context(ctx).Do()
}

// FindByKey searches the private extended property. It returns nil, nil
// when no event carries the key.
func (c *CalendarClient) FindByKey(ctx context.Context, key string) (*calendar.Event, error) {
	events, err := c.srv.Events.List(c.calendarID).
		PrivateExtendedProperty(fmt.Sprintf("%s=%s", KeyProperty, key)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	for _, e := range events.Items {
		if e.Status != "cancelled" {
			return e, nil
		}
	}
	return nil, nil
}

func (c *CalendarClient) Insert(ctx context.Context, event *calendar.Event) (*calendar.Event, error) {
	return c.srv.Events.Insert(c.calendarID, event).Context(ctx).Do()
}

func (c *CalendarClient) Patch(ctx context.Context, eventID string, patch *calendar.Event) (*calendar.Event, error) {
	return c.srv.Events.Patch(c.calendarID, eventID, patch).Context(ctx).Do()
}

func (c *CalendarClient) Delete(ctx context.Context, eventID string) error {
	return c.srv.Events.Delete(c.calendarID, eventID).Context(ctx).Do()
}

// IsGone reports whether err means the event no longer exists.
func IsGone(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone
	}
	return false
}
