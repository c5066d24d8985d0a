package models

import (
	"fmt"
	"strings"
)

// LeadEventType classifies a lead lifecycle change tracked for ad-platform
// delivery. The value is always "lead_" + the configured stage key.
type LeadEventType string

const (
	LeadAtendido    LeadEventType = "lead_atendido"
	LeadVisitaFeita LeadEventType = "lead_visita_feita"
	LeadGanho       LeadEventType = "lead_ganho"
)

// EventTypePrefix is prepended to a stage key to form a LeadEventType.
const EventTypePrefix = "lead_"

// LeadEventTypeForStage builds the event type for a configured stage key,
// e.g. "ganho" -> "lead_ganho".
func LeadEventTypeForStage(stage string) LeadEventType {
	return LeadEventType(EventTypePrefix + strings.TrimSpace(stage))
}

// ParseLeadEventType parses a string into one of the tracked event types.
// Returns an error if the event type is unknown.
func ParseLeadEventType(name string) (LeadEventType, error) {
	name = strings.ToLower(strings.TrimSpace(name))

	validTypes := []LeadEventType{
		LeadAtendido,
		LeadVisitaFeita,
		LeadGanho,
	}

	for _, eventType := range validTypes {
		if string(eventType) == name {
			return eventType, nil
		}
	}

	return "", fmt.Errorf("unknown lead event type: %s", name)
}

// Stage returns the stage key without the "lead_" prefix.
func (t LeadEventType) Stage() string {
	return strings.TrimPrefix(string(t), EventTypePrefix)
}
