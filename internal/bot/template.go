package bot

import (
	"regexp"
	"strings"

	"github.com/zapfesta/zapfesta/internal/storage/model"
)

var placeholderRe = regexp.MustCompile(`\{([a-zA-Z0-9_]+)\}`)

// Aliases aceitos nos templates para as chaves reais de bot_data.
var placeholderAliases = map[string]string{
	"dia": StepDayPreference,
}

// Render substitui {placeholder} (case-insensitive) pelos valores coletados.
// Placeholders desconhecidos viram string vazia, nunca o texto literal.
func Render(tpl string, data map[string]string) string {
	if tpl == "" {
		return ""
	}

	lower := make(map[string]string, len(data))
	for k, v := range data {
		lower[strings.ToLower(k)] = v
	}

	return placeholderRe.ReplaceAllStringFunc(tpl, func(m string) string {
		key := strings.ToLower(strings.Trim(m, "{}"))
		if alias, ok := placeholderAliases[key]; ok {
			key = alias
		}
		return lower[key]
	})
}

// LeadData monta o mapa de substituição a partir de um lead já qualificado,
// usado pelos templates de boas-vindas qualificadas e de follow-up.
func LeadData(lead model.Lead) map[string]string {
	return map[string]string{
		StepName:          lead.Name,
		StepMonth:         lead.EventMonth,
		StepDayPreference: lead.DayPreference,
		StepGuestCount:    lead.GuestCount,
	}
}
