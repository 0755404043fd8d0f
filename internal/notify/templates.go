package notify

import (
	"fmt"
	"time"

	"github.com/rudhramentertainment/RBackend/internal/domain"
)

var displayZone = time.FixedZone("IST", 5*3600+1800)

func formatWhen(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "N/A"
	}
	return t.In(displayZone).Format("02 Jan 2006, 03:04 PM")
}

func TaskAssigned(taskID, title string, deadline *time.Time) domain.Notification {
	return domain.Notification{
		Title: "New task: " + title,
		Body:  fmt.Sprintf("You have been assigned: %s\nDeadline: %s", title, formatWhen(deadline)),
		Data:  map[string]string{"type": "task", "taskId": taskID},
	}
}

// TaskDeadline describes a deadline that is days away; negative days are overdue.
func TaskDeadline(taskID, title string, deadline *time.Time, days int) domain.Notification {
	when := "Upcoming deadline"
	if days < 0 {
		when = "Overdue"
	}
	due := formatWhen(deadline)
	var body string
	switch {
	case days > 1:
		body = fmt.Sprintf("%s is due in %d days. Due: %s", title, days, due)
	case days == 1:
		body = fmt.Sprintf("%s is due tomorrow. Due: %s", title, due)
	case days == 0:
		body = fmt.Sprintf("%s is due today. Due: %s", title, due)
	default:
		body = fmt.Sprintf("%s is overdue by %d day(s). Due: %s", title, -days, due)
	}
	return domain.Notification{
		Title: fmt.Sprintf("%s: %s", when, title),
		Body:  body,
		Data:  map[string]string{"type": "task_deadline", "taskId": taskID, "days": fmt.Sprint(days)},
	}
}

func MeetingCreated(meetingID, title string, start time.Time) domain.Notification {
	return domain.Notification{
		Title: "New Meeting Scheduled",
		Body:  fmt.Sprintf("%s • %s", title, formatWhen(&start)),
		Data: map[string]string{
			"type":      "meeting",
			"meetingId": meetingID,
			"startTime": start.UTC().Format(time.RFC3339),
			"title":     title,
		},
	}
}

func LeadConverted(leadID, name string) domain.Notification {
	return domain.Notification{
		Title: "Lead converted",
		Body:  fmt.Sprintf("%s is now a client", name),
		Data:  map[string]string{"type": "lead_converted", "leadId": leadID},
	}
}
