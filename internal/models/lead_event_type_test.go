package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeadEventTypeForStage(t *testing.T) {
	assert.Equal(t, LeadGanho, LeadEventTypeForStage("ganho"))
	assert.Equal(t, LeadVisitaFeita, LeadEventTypeForStage(" visita_feita "))
}

func TestParseLeadEventType(t *testing.T) {
	eventType, err := ParseLeadEventType("LEAD_ATENDIDO")
	require.NoError(t, err)
	assert.Equal(t, LeadAtendido, eventType)

	_, err = ParseLeadEventType("lead_perdido")
	assert.Error(t, err)
}

func TestStage(t *testing.T) {
	assert.Equal(t, "ganho", LeadGanho.Stage())
	assert.Equal(t, "visita_feita", LeadVisitaFeita.Stage())
}
