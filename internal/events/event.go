package events

import (
	"time"

	"github.com/rudhramentertainment/RBackend/internal/domain"
)

const (
	TypeTaskAssigned   = "task.assigned"
	TypeTaskDeadline   = "task.deadline"
	TypeMeetingCreated = "meeting.created"
	TypeLeadConverted  = "lead.converted"
	TypeGeneric        = "generic"
)

// Event is a domain event published by the CRUD side of the backend.
// UserIDs may be empty only for broadcasts.
type Event struct {
	Type      string   `json:"type" validate:"required,oneof=task.assigned task.deadline meeting.created lead.converted generic"`
	UserIDs   []string `json:"userIds" validate:"omitempty,dive,mongodb"`
	Broadcast bool     `json:"broadcast"`

	Task         *TaskPayload         `json:"task,omitempty" validate:"required_if=Type task.assigned,required_if=Type task.deadline"`
	Meeting      *MeetingPayload      `json:"meeting,omitempty" validate:"required_if=Type meeting.created"`
	Lead         *LeadPayload         `json:"lead,omitempty" validate:"required_if=Type lead.converted"`
	Notification *domain.Notification `json:"notification,omitempty" validate:"required_if=Type generic"`
}

type TaskPayload struct {
	ID       string     `json:"id" validate:"required"`
	Title    string     `json:"title" validate:"required"`
	Deadline *time.Time `json:"deadline"`
	DaysLeft int        `json:"daysLeft"`
}

type MeetingPayload struct {
	ID        string    `json:"id" validate:"required"`
	Title     string    `json:"title" validate:"required"`
	StartTime time.Time `json:"startTime" validate:"required"`
}

type LeadPayload struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"name" validate:"required"`
}
