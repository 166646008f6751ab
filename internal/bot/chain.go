package bot

import (
	"sort"

	"github.com/zapfesta/zapfesta/internal/storage/model"
)

// Estados fixos do diálogo, fora da cadeia configurável de perguntas.
const (
	StepWelcome          = "welcome"
	StepSendingMaterials = "sending_materials"
	StepNextStep         = "proximo_passo"
	StepCompleteFinal    = "complete_final"
	StepTransferred      = "transferred"
	StepQualifiedFromLP  = "qualified_from_lp"
)

// Chaves da cadeia padrão de qualificação.
const (
	StepContactType   = "tipo"
	StepName          = "nome"
	StepMonth         = "mes"
	StepDayPreference = "dia_preferencia"
	StepGuestCount    = "convidados"
)

// Chain é a sequência de perguntas ativas de uma instância, em ordem. A
// própria sequência é o grafo de estados da qualificação.
type Chain struct {
	steps []model.BotQuestion
	index map[string]int
}

// BuildChain monta a cadeia a partir das perguntas ativas configuradas. Sem
// perguntas configuradas, vale a cadeia padrão.
func BuildChain(questions []model.BotQuestion) Chain {
	var active []model.BotQuestion
	for _, q := range questions {
		if q.Active {
			active = append(active, q)
		}
	}

	if len(active) == 0 {
		active = defaultChain()
	}

	sort.SliceStable(active, func(i, j int) bool {
		return active[i].SortOrder < active[j].SortOrder
	})

	idx := make(map[string]int, len(active))
	for i, q := range active {
		idx[q.StepKey] = i
	}

	return Chain{steps: active, index: idx}
}

func (c Chain) First() (model.BotQuestion, bool) {
	if len(c.steps) == 0 {
		return model.BotQuestion{}, false
	}
	return c.steps[0], true
}

func (c Chain) Get(stepKey string) (model.BotQuestion, bool) {
	i, ok := c.index[stepKey]
	if !ok {
		return model.BotQuestion{}, false
	}
	return c.steps[i], true
}

// Next retorna a pergunta seguinte; ok=false indica o fim da qualificação.
func (c Chain) Next(stepKey string) (model.BotQuestion, bool) {
	i, ok := c.index[stepKey]
	if !ok || i+1 >= len(c.steps) {
		return model.BotQuestion{}, false
	}
	return c.steps[i+1], true
}

func defaultChain() []model.BotQuestion {
	return []model.BotQuestion{
		{
			StepKey:   StepContactType,
			Question:  "Para começar, me conta: você já é nosso cliente ou quer um orçamento?",
			InputKind: model.InputKindMenu,
			SortOrder: 1,
			Active:    true,
			Options:   DefaultOptions(StepContactType),
		},
		{
			StepKey:      StepName,
			Question:     "Qual é o seu nome?",
			Confirmation: "Prazer, {nome}! 😊",
			InputKind:    model.InputKindText,
			SortOrder:    2,
			Active:       true,
		},
		{
			StepKey:   StepMonth,
			Question:  "Para qual mês você está planejando a festa?",
			InputKind: model.InputKindMenu,
			SortOrder: 3,
			Active:    true,
			Options:   DefaultOptions(StepMonth),
		},
		{
			StepKey:   StepDayPreference,
			Question:  "Tem preferência de dia da semana?",
			InputKind: model.InputKindMenu,
			SortOrder: 4,
			Active:    true,
			Options:   DefaultOptions(StepDayPreference),
		},
		{
			StepKey:   StepGuestCount,
			Question:  "E quantos convidados você espera?",
			InputKind: model.InputKindMenu,
			SortOrder: 5,
			Active:    true,
			Options:   DefaultOptions(StepGuestCount),
		},
	}
}
