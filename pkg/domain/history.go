package domain

import (
	"fmt"
	"time"
)

// HistoryEntry records one processed message and the step it left the chain in.
type HistoryEntry struct {
	Message string    `json:"message"`
	Step    string    `json:"step"`
	At      time.Time `json:"at"`
}

func (h HistoryEntry) String() string {
	step := h.Step
	if step == "" {
		step = "<terminated>"
	}
	return fmt.Sprintf("%s %s -> %s", h.At.Format(time.RFC3339Nano), h.Message, step)
}
