package bot

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/zapfesta/zapfesta/internal/storage/model"
)

// Padrões aceitos para extrair opções de textos de pergunta legados:
// "*1* - valor", "1 - valor" e "1. valor".
var optionLineRes = []*regexp.Regexp{
	regexp.MustCompile(`^\*(\d+)\*\s*-\s*(.+)$`),
	regexp.MustCompile(`^(\d+)\s*-\s*(.+)$`),
	regexp.MustCompile(`^(\d+)\.\s*(.+)$`),
}

// QuestionOptions resolve o conjunto de opções válidas de uma pergunta de
// menu. Preferência: opções tipadas > extração do texto > menu padrão do step.
func QuestionOptions(q model.BotQuestion) []model.BotQuestionOption {
	if len(q.Options) > 0 {
		return q.Options
	}
	if opts := extractOptions(q.Question); len(opts) > 0 {
		return opts
	}
	return DefaultOptions(q.StepKey)
}

func extractOptions(text string) []model.BotQuestionOption {
	var opts []model.BotQuestionOption
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		for _, re := range optionLineRes {
			m := re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			opts = append(opts, model.BotQuestionOption{
				Code:     m[1],
				Label:    strings.TrimSpace(m[2]),
				Position: len(opts) + 1,
			})
			break
		}
	}
	return opts
}

// MenuText renderiza a pergunta com as opções numeradas a partir da lista
// tipada; o texto nunca é a fonte das opções quando elas existem.
func MenuText(q model.BotQuestion) string {
	opts := QuestionOptions(q)
	if len(opts) == 0 {
		return q.Question
	}

	var b strings.Builder
	b.WriteString(q.Question)
	for _, o := range opts {
		b.WriteString(fmt.Sprintf("\n*%s* - %s", o.Code, o.Label))
	}
	return b.String()
}

// MatchOption valida a resposta contra as opções: aceita o código numerado ou
// o rótulo exato (sem diferenciar maiúsculas). Retorna o rótulo escolhido.
func MatchOption(opts []model.BotQuestionOption, input string) (string, bool) {
	answer := strings.TrimSpace(input)
	if answer == "" {
		return "", false
	}

	for _, o := range opts {
		if answer == o.Code {
			return o.Label, true
		}
	}
	for _, o := range opts {
		if strings.EqualFold(answer, o.Label) {
			return o.Label, true
		}
	}
	return "", false
}

// InvalidOptionMessage relembra as opções válidas quando a resposta não casa.
func InvalidOptionMessage(q model.BotQuestion) string {
	opts := QuestionOptions(q)
	var b strings.Builder
	b.WriteString("Ops, não entendi. 🙈 Responda com o número de uma das opções:")
	for _, o := range opts {
		b.WriteString(fmt.Sprintf("\n*%s* - %s", o.Code, o.Label))
	}
	return b.String()
}

// DefaultOptions é o menu padrão por step, usado quando a pergunta não define
// opções tipadas nem traz opções embutidas no texto.
func DefaultOptions(stepKey string) []model.BotQuestionOption {
	labels := defaultLabels(stepKey)
	opts := make([]model.BotQuestionOption, 0, len(labels))
	for i, label := range labels {
		opts = append(opts, model.BotQuestionOption{
			Code:     fmt.Sprintf("%d", i+1),
			Label:    label,
			Position: i + 1,
		})
	}
	return opts
}

func defaultLabels(stepKey string) []string {
	switch stepKey {
	case StepContactType:
		return []string{"Quero um orçamento", "Já sou cliente"}
	case StepMonth:
		return []string{
			"Janeiro", "Fevereiro", "Março", "Abril", "Maio", "Junho",
			"Julho", "Agosto", "Setembro", "Outubro", "Novembro", "Dezembro",
		}
	case StepDayPreference:
		return []string{"Sexta-feira", "Sábado", "Domingo", "Ainda não sei"}
	case StepGuestCount:
		return []string{"Até 50", "De 50 a 100", "De 100 a 150", "Mais de 150"}
	case StepNextStep:
		return []string{model.NextStepVisitLabel, model.NextStepDoubtsLabel, model.NextStepAnalyzeLabel}
	default:
		return nil
	}
}
