package followup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/zapfesta/zapfesta/internal/bot"
	"github.com/zapfesta/zapfesta/internal/dispatch"
	"github.com/zapfesta/zapfesta/internal/notify"
	"github.com/zapfesta/zapfesta/internal/provider"
	"github.com/zapfesta/zapfesta/internal/storage"
	"github.com/zapfesta/zapfesta/internal/storage/model"
)

// Janela mínima: leads com escolha de "analisar" mais antiga que isso nunca
// recebem follow-up, para não reabrir contatos frios.
const maxAge = 72 * time.Hour

// Result resume uma execução do scheduler; falhas por lead são coletadas,
// nunca abortam o lote.
type Result struct {
	Sent   int      `json:"sent"`
	Errors []string `json:"errors,omitempty"`
}

type tier struct {
	number     int
	delay      time.Duration
	template   string
	marker     string
	priorMarks []string
}

// Scheduler reengaja leads parados. Disparado por um timer externo via
// endpoint de cron; nunca se auto-agenda.
type Scheduler struct {
	instances     storage.InstanceRepository
	settings      storage.BotSettingsRepository
	leads         storage.LeadRepository
	history       storage.LeadHistoryRepository
	conversations storage.ConversationRepository
	sender        bot.Sender
	notifier      bot.Notifier
	creds         func(model.Instance) (provider.Credentials, error)
	log           *zap.Logger
}

func NewScheduler(
	instances storage.InstanceRepository,
	settings storage.BotSettingsRepository,
	leads storage.LeadRepository,
	history storage.LeadHistoryRepository,
	conversations storage.ConversationRepository,
	sender bot.Sender,
	notifier bot.Notifier,
	creds func(model.Instance) (provider.Credentials, error),
	log *zap.Logger,
) *Scheduler {
	return &Scheduler{
		instances:     instances,
		settings:      settings,
		leads:         leads,
		history:       history,
		conversations: conversations,
		sender:        sender,
		notifier:      notifier,
		creds:         creds,
		log:           log,
	}
}

// Run varre todas as instâncias com follow-up habilitado e envia os devidos
// reengajamentos, um lead por vez, isolando falhas.
func (s *Scheduler) Run(ctx context.Context) Result {
	var result Result

	instances, err := s.instances.List(ctx)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("listar instâncias: %v", err))
		return result
	}

	for _, inst := range instances {
		settings, err := s.settings.GetByInstance(ctx, inst.ID)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				result.Errors = append(result.Errors, fmt.Sprintf("instância %s: configurações: %v", inst.ID, err))
			}
			continue
		}

		var tiers []tier
		if settings.FollowupEnabled {
			tiers = append(tiers, tier{
				number:   1,
				delay:    hoursOrDefault(settings.FollowupDelayHours, 24),
				template: settings.FollowupTemplate,
				marker:   model.HistoryActionFollowup,
			})
		}
		if settings.Followup2Enabled {
			tiers = append(tiers, tier{
				number:     2,
				delay:      hoursOrDefault(settings.Followup2DelayHours, 48),
				template:   settings.Followup2Template,
				marker:     model.HistoryActionFollowup2,
				priorMarks: []string{model.HistoryActionFollowup},
			})
		}

		for _, t := range tiers {
			s.runTier(ctx, inst, t, &result)
		}
	}

	s.log.Info("followup: execução concluída",
		zap.Int("sent", result.Sent),
		zap.Int("errors", len(result.Errors)),
	)
	return result
}

func (s *Scheduler) runTier(ctx context.Context, inst model.Instance, t tier, result *Result) {
	now := time.Now()
	from := now.Add(-maxAge)
	to := now.Add(-t.delay)
	if !from.Before(to) {
		return
	}

	leadIDs, err := s.history.LeadIDsWithActionBetween(ctx, model.HistoryActionNextStep, model.NextStepAnalyzeLabel, from, to)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("instância %s: buscar leads: %v", inst.ID, err))
		return
	}

	for _, leadID := range leadIDs {
		if err := s.sendFollowup(ctx, inst, t, leadID); err != nil {
			if errors.Is(err, errSkipped) {
				continue
			}
			result.Errors = append(result.Errors, fmt.Sprintf("lead %s: %v", leadID, err))
			continue
		}
		result.Sent++
	}
}

var errSkipped = errors.New("followup: lead fora dos critérios")

func (s *Scheduler) sendFollowup(ctx context.Context, inst model.Instance, t tier, leadID string) error {
	// Dedup: exatamente um follow-up por lead por tier, mesmo reexecutando.
	sent, err := s.history.HasAction(ctx, leadID, t.marker)
	if err != nil {
		return fmt.Errorf("consultar histórico: %w", err)
	}
	if sent {
		return errSkipped
	}

	// O tier 2 só entra depois do tier 1 ter sido enviado.
	for _, prior := range t.priorMarks {
		has, err := s.history.HasAction(ctx, leadID, prior)
		if err != nil {
			return fmt.Errorf("consultar histórico: %w", err)
		}
		if !has {
			return errSkipped
		}
	}

	lead, err := s.leads.GetByID(ctx, leadID)
	if err != nil {
		return fmt.Errorf("carregar lead: %w", err)
	}
	if lead.Status != model.LeadStatusAwaitingResponse {
		return errSkipped
	}

	conv, err := s.conversations.GetByLead(ctx, leadID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return errSkipped
		}
		return fmt.Errorf("carregar conversa: %w", err)
	}
	if conv.InstanceID != inst.ID {
		return errSkipped
	}

	creds, err := s.creds(inst)
	if err != nil {
		return err
	}

	text := bot.Render(t.template, bot.LeadData(lead))
	if text == "" {
		text = bot.Render("Oi, {nome}! 👋 Conseguiu dar uma olhada nos materiais que enviamos?", bot.LeadData(lead))
	}

	if _, err := s.sender.Send(ctx, dispatch.KindText, creds, conv, dispatch.Payload{Text: text}); err != nil {
		return fmt.Errorf("enviar mensagem: %w", err)
	}

	if _, err := s.history.Append(ctx, model.LeadHistory{
		LeadID:   leadID,
		Action:   t.marker,
		NewValue: fmt.Sprintf("tier %d", t.number),
		Actor:    "sistema",
	}); err != nil {
		return fmt.Errorf("registrar histórico: %w", err)
	}

	if err := s.notifier.FanOut(ctx, notify.Event{
		Type:     model.NotificationFollowupSent,
		UnitID:   inst.UnitID,
		Title:    "Follow-up enviado",
		Message:  fmt.Sprintf("Follow-up automático enviado para %s.", lead.Name),
		Priority: model.PriorityLow,
		Data: map[string]interface{}{
			"leadId":         leadID,
			"conversationId": conv.ID,
			"unitId":         inst.UnitID,
			"tier":           t.number,
		},
	}); err != nil {
		s.log.Error("followup: fan-out", zap.String("leadId", leadID), zap.Error(err))
	}

	return nil
}

func hoursOrDefault(hours, fallback int) time.Duration {
	if hours <= 0 {
		hours = fallback
	}
	return time.Duration(hours) * time.Hour
}
