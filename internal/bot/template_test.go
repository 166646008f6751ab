package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zapfesta/zapfesta/internal/storage/model"
)

func TestRenderSubstituiPlaceholders(t *testing.T) {
	data := map[string]string{
		StepName:  "Ana",
		StepMonth: "Maio",
	}

	assert.Equal(t, "Oi, Ana! Festa em Maio.", Render("Oi, {nome}! Festa em {mes}.", data))
}

func TestRenderCaseInsensitive(t *testing.T) {
	data := map[string]string{StepName: "Ana"}
	assert.Equal(t, "Oi, Ana!", Render("Oi, {NOME}!", data))
	assert.Equal(t, "Oi, Ana!", Render("Oi, {Nome}!", data))
}

func TestRenderAliasDia(t *testing.T) {
	data := map[string]string{StepDayPreference: "Sábado"}
	assert.Equal(t, "Preferência: Sábado", Render("Preferência: {dia}", data))
}

func TestRenderPlaceholderDesconhecidoVazio(t *testing.T) {
	assert.Equal(t, "Oi, !", Render("Oi, {inexistente}!", map[string]string{StepName: "Ana"}))
}

func TestRenderTemplateVazio(t *testing.T) {
	assert.Equal(t, "", Render("", map[string]string{StepName: "Ana"}))
}

func TestLeadData(t *testing.T) {
	lead := model.Lead{
		Name:          "Bruna",
		EventMonth:    "Julho",
		DayPreference: "Domingo",
		GuestCount:    "De 50 a 100",
	}

	data := LeadData(lead)
	assert.Equal(t, "Bruna", data[StepName])
	assert.Equal(t, "Julho", data[StepMonth])
	assert.Equal(t, "Domingo", data[StepDayPreference])
	assert.Equal(t, "De 50 a 100", data[StepGuestCount])
}
