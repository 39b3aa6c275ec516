package models

import "time"

// CallbackAction represents the type of inline button action
type CallbackAction string

const (
	CallbackRefresh CallbackAction = "refresh"
	CallbackStop    CallbackAction = "stop"
)

// CallbackData is the payload of an inline keyboard button
type CallbackData struct {
	Action CallbackAction `json:"a"`
}

// Status is a snapshot of the running automation
type Status struct {
	Recipient string
	State     RunState
	Ticks     int
	LastSent  *time.Time
}
