package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zapfesta/zapfesta/internal/dispatch"
	"github.com/zapfesta/zapfesta/internal/notify"
	"github.com/zapfesta/zapfesta/internal/pkg/lock"
	"github.com/zapfesta/zapfesta/internal/pkg/task"
	"github.com/zapfesta/zapfesta/internal/provider"
	"github.com/zapfesta/zapfesta/internal/storage"
	"github.com/zapfesta/zapfesta/internal/storage/model"
)

// Sender é a fatia do dispatcher usada pelo motor.
type Sender interface {
	Send(ctx context.Context, kind dispatch.Kind, creds provider.Credentials, conv model.Conversation, p dispatch.Payload) (model.Message, error)
}

// Notifier é a fatia do fan-out usada pelo motor.
type Notifier interface {
	FanOut(ctx context.Context, ev notify.Event) error
}

// Repos agrupa os repositórios que o motor consome.
type Repos struct {
	Conversations storage.ConversationRepository
	Settings      storage.BotSettingsRepository
	Questions     storage.BotQuestionRepository
	Leads         storage.LeadRepository
	History       storage.LeadHistoryRepository
	Vips          storage.VipNumberRepository
}

// Engine executa o diálogo de qualificação. Todo o estado durável vive no
// banco; cada mensagem é um ciclo ler-decidir-gravar serializado por um lock
// por conversa.
type Engine struct {
	repos    Repos
	sender   Sender
	notifier Notifier
	queue    task.Queue
	locker   lock.Locker
	lockTTL  time.Duration
	creds    func(model.Instance) (provider.Credentials, error)
	log      *zap.Logger
}

func NewEngine(repos Repos, sender Sender, notifier Notifier, queue task.Queue, locker lock.Locker, lockTTL time.Duration, creds func(model.Instance) (provider.Credentials, error), log *zap.Logger) *Engine {
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	return &Engine{
		repos:    repos,
		sender:   sender,
		notifier: notifier,
		queue:    queue,
		locker:   locker,
		lockTTL:  lockTTL,
		creds:    creds,
		log:      log,
	}
}

// HandleInbound processa uma mensagem recebida. Retorno nil cobre também os
// no-ops do guard de entrada; erro indica falha real de processamento.
func (e *Engine) HandleInbound(ctx context.Context, inst model.Instance, conv model.Conversation, text string) error {
	settings, allowed, err := e.entryAllowed(ctx, inst, conv)
	if err != nil {
		return err
	}
	if !allowed {
		return nil
	}

	// Serializa mensagens concorrentes da mesma conversa; quem não pega o
	// lock descarta, o diálogo é em ritmo humano.
	l, acquired, err := e.locker.TryAcquire(ctx, "bot:conversa:"+conv.ID, e.lockTTL)
	if err != nil {
		return fmt.Errorf("bot: adquirir lock: %w", err)
	}
	if !acquired {
		e.log.Debug("bot: conversa em processamento, mensagem descartada",
			zap.String("conversationId", conv.ID),
		)
		return nil
	}
	defer func() {
		if err := l.Release(ctx); err != nil {
			e.log.Warn("bot: liberar lock", zap.Error(err))
		}
	}()

	// Relê o estado sob o lock; a cópia recebida pode estar defasada.
	conv, err = e.repos.Conversations.GetByID(ctx, conv.ID)
	if err != nil {
		return fmt.Errorf("bot: recarregar conversa: %w", err)
	}

	creds, err := e.creds(inst)
	if err != nil {
		return err
	}

	step := ""
	if conv.BotStep != nil {
		step = *conv.BotStep
	}

	// Contato já qualificado por fora (ex.: landing page) recebe uma única
	// saudação e nunca entra na cadeia. A exceção é proximo_passo pendente.
	if step != StepNextStep {
		handled, err := e.handleQualifiedFromLP(ctx, inst, conv, creds, settings, step)
		if err != nil || handled {
			return err
		}
	}

	return e.runStep(ctx, inst, conv, creds, settings, step, text)
}

func (e *Engine) entryAllowed(ctx context.Context, inst model.Instance, conv model.Conversation) (model.BotSettings, bool, error) {
	if conv.BotEnabled != nil && !*conv.BotEnabled {
		return model.BotSettings{}, false, nil
	}

	settings, err := e.repos.Settings.GetByInstance(ctx, inst.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return model.BotSettings{}, false, nil
		}
		return model.BotSettings{}, false, fmt.Errorf("bot: carregar configurações: %w", err)
	}

	if settings.TestMode {
		if conv.Phone != settings.TestNumber {
			return settings, false, nil
		}
	} else if !settings.Enabled {
		return settings, false, nil
	}

	vip, err := e.repos.Vips.Exists(ctx, inst.ID, conv.Phone)
	if err != nil {
		return settings, false, fmt.Errorf("bot: consultar vips: %w", err)
	}
	if vip {
		return settings, false, nil
	}

	return settings, true, nil
}

func (e *Engine) handleQualifiedFromLP(ctx context.Context, inst model.Instance, conv model.Conversation, creds provider.Credentials, settings model.BotSettings, step string) (bool, error) {
	if conv.LeadID == nil || (step != "" && step != StepWelcome) {
		return false, nil
	}

	lead, err := e.repos.Leads.GetByID(ctx, *conv.LeadID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("bot: carregar lead: %w", err)
	}
	if !lead.Qualified() {
		return false, nil
	}

	msg := Render(settings.QualifiedLeadMessage, LeadData(lead))
	if _, err := e.sender.Send(ctx, dispatch.KindText, creds, conv, dispatch.Payload{Text: msg}); err != nil {
		return false, err
	}

	qualified := StepQualifiedFromLP
	disabled := false
	conv.BotStep = &qualified
	conv.BotEnabled = &disabled
	if _, err := e.repos.Conversations.Update(ctx, conv); err != nil {
		return false, fmt.Errorf("bot: atualizar conversa: %w", err)
	}

	e.log.Info("bot: lead já qualificado, saudação única enviada",
		zap.String("conversationId", conv.ID),
		zap.String("leadId", lead.ID),
	)
	return true, nil
}

func (e *Engine) runStep(ctx context.Context, inst model.Instance, conv model.Conversation, creds provider.Credentials, settings model.BotSettings, step, text string) error {
	questions, err := e.repos.Questions.ListActiveByInstance(ctx, inst.ID)
	if err != nil {
		return fmt.Errorf("bot: carregar perguntas: %w", err)
	}
	chain := BuildChain(questions)

	switch step {
	case "", StepWelcome:
		return e.sendWelcome(ctx, conv, creds, settings, chain)
	case StepNextStep:
		return e.handleNextStep(ctx, inst, conv, creds, settings, text)
	case StepSendingMaterials, StepCompleteFinal, StepTransferred, StepQualifiedFromLP:
		// Estados terminais ou transitórios: nada a processar.
		return nil
	}

	q, ok := chain.Get(step)
	if !ok {
		e.log.Warn("bot: step desconhecido, mensagem ignorada",
			zap.String("conversationId", conv.ID),
			zap.String("step", step),
		)
		return nil
	}

	value, valid := e.validateAnswer(q, text)
	if !valid {
		_, err := e.sender.Send(ctx, dispatch.KindText, creds, conv, dispatch.Payload{Text: InvalidOptionMessage(q)})
		return err
	}

	if q.StepKey == StepContactType && isExistingClient(value) {
		return e.transferToHuman(ctx, inst, conv, creds, settings)
	}

	if conv.BotData == nil {
		conv.BotData = make(map[string]string)
	}
	conv.BotData[q.StepKey] = value

	next, hasNext := chain.Next(q.StepKey)
	if hasNext {
		return e.advance(ctx, conv, creds, q, next)
	}

	return e.completeQualification(ctx, inst, conv, creds, settings)
}

func (e *Engine) validateAnswer(q model.BotQuestion, text string) (string, bool) {
	if q.InputKind == model.InputKindText {
		if !ValidName(text) {
			return "", false
		}
		return strings.TrimSpace(text), true
	}
	return MatchOption(QuestionOptions(q), text)
}

func isExistingClient(label string) bool {
	return strings.EqualFold(strings.TrimSpace(label), "Já sou cliente")
}

func (e *Engine) sendWelcome(ctx context.Context, conv model.Conversation, creds provider.Credentials, settings model.BotSettings, chain Chain) error {
	first, ok := chain.First()
	if !ok {
		return nil
	}

	text := MenuText(first)
	if settings.WelcomeMessage != "" {
		text = settings.WelcomeMessage + "\n\n" + text
	}

	if _, err := e.sender.Send(ctx, dispatch.KindText, creds, conv, dispatch.Payload{Text: text}); err != nil {
		return err
	}

	conv.BotStep = &first.StepKey
	if conv.BotData == nil {
		conv.BotData = make(map[string]string)
	}
	_, err := e.repos.Conversations.Update(ctx, conv)
	if err != nil {
		return fmt.Errorf("bot: atualizar conversa: %w", err)
	}
	return nil
}

func (e *Engine) advance(ctx context.Context, conv model.Conversation, creds provider.Credentials, current, next model.BotQuestion) error {
	text := MenuText(next)
	if current.Confirmation != "" {
		text = Render(current.Confirmation, conv.BotData) + "\n\n" + text
	}

	if _, err := e.sender.Send(ctx, dispatch.KindText, creds, conv, dispatch.Payload{Text: text}); err != nil {
		return err
	}

	conv.BotStep = &next.StepKey
	if _, err := e.repos.Conversations.Update(ctx, conv); err != nil {
		return fmt.Errorf("bot: atualizar conversa: %w", err)
	}
	return nil
}

func (e *Engine) transferToHuman(ctx context.Context, inst model.Instance, conv model.Conversation, creds provider.Credentials, settings model.BotSettings) error {
	msg := settings.TransferMessage
	if msg == "" {
		msg = "Perfeito! 😊 Já vou te transferir para a nossa equipe de atendimento."
	}
	if _, err := e.sender.Send(ctx, dispatch.KindText, creds, conv, dispatch.Payload{Text: msg}); err != nil {
		return err
	}

	transferred := StepTransferred
	disabled := false
	conv.BotStep = &transferred
	conv.BotEnabled = &disabled
	if _, err := e.repos.Conversations.Update(ctx, conv); err != nil {
		return fmt.Errorf("bot: atualizar conversa: %w", err)
	}

	return e.notifier.FanOut(ctx, notify.Event{
		Type:    model.NotificationExistingClient,
		UnitID:  inst.UnitID,
		Title:   "Cliente existente no WhatsApp",
		Message: fmt.Sprintf("O contato %s informou que já é cliente e aguarda atendimento.", contactLabel(conv)),
		Data: map[string]interface{}{
			"conversationId": conv.ID,
			"phone":          conv.Phone,
			"contactName":    conv.ContactName,
			"unitId":         inst.UnitID,
		},
	})
}

func (e *Engine) completeQualification(ctx context.Context, inst model.Instance, conv model.Conversation, creds provider.Credentials, settings model.BotSettings) error {
	lead, err := e.upsertLead(ctx, inst, &conv)
	if err != nil {
		return err
	}

	msg := Render(settings.CompletionMessage, conv.BotData)
	if msg == "" {
		msg = Render("Perfeito, {nome}! 🎉 Já tenho tudo o que preciso.", conv.BotData)
	}
	if _, err := e.sender.Send(ctx, dispatch.KindText, creds, conv, dispatch.Payload{Text: msg}); err != nil {
		return err
	}

	sending := StepSendingMaterials
	conv.BotStep = &sending
	if _, err := e.repos.Conversations.Update(ctx, conv); err != nil {
		return fmt.Errorf("bot: atualizar conversa: %w", err)
	}

	// O envio de materiais é lento; continua em segundo plano para o webhook
	// responder imediatamente. Falhas lá são apenas logadas.
	t := task.New(task.TypeSendMaterials, inst.ID, map[string]string{
		"conversationId": conv.ID,
	})
	if err := e.queue.Enqueue(ctx, t); err != nil {
		e.log.Error("bot: enfileirar envio de materiais",
			zap.String("conversationId", conv.ID),
			zap.Error(err),
		)
	}

	e.log.Info("bot: qualificação concluída",
		zap.String("conversationId", conv.ID),
		zap.String("leadId", lead.ID),
	)
	return nil
}

func (e *Engine) upsertLead(ctx context.Context, inst model.Instance, conv *model.Conversation) (model.Lead, error) {
	data := conv.BotData

	if conv.LeadID != nil {
		lead, err := e.repos.Leads.GetByID(ctx, *conv.LeadID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return model.Lead{}, fmt.Errorf("bot: carregar lead: %w", err)
		}
		if err == nil {
			lead.Name = data[StepName]
			lead.EventMonth = data[StepMonth]
			lead.DayPreference = data[StepDayPreference]
			lead.GuestCount = data[StepGuestCount]
			lead, err = e.repos.Leads.Update(ctx, lead)
			if err != nil {
				return model.Lead{}, fmt.Errorf("bot: atualizar lead: %w", err)
			}
			return lead, nil
		}
	}

	lead := model.Lead{
		ID:            uuid.New().String(),
		Name:          data[StepName],
		Phone:         conv.Phone,
		UnitID:        inst.UnitID,
		EventMonth:    data[StepMonth],
		DayPreference: data[StepDayPreference],
		GuestCount:    data[StepGuestCount],
		Status:        model.LeadStatusNew,
		Source:        "bot_whatsapp",
	}
	lead, err := e.repos.Leads.Create(ctx, lead)
	if err != nil {
		return model.Lead{}, fmt.Errorf("bot: criar lead: %w", err)
	}

	conv.LeadID = &lead.ID
	return lead, nil
}

// nextStepQuestion monta a pergunta de próximo passo com o menu padrão.
func nextStepQuestion(settings model.BotSettings) model.BotQuestion {
	question := settings.NextStepQuestion
	if question == "" {
		question = "E agora, qual o próximo passo? 🎈"
	}
	return model.BotQuestion{
		StepKey:   StepNextStep,
		Question:  question,
		InputKind: model.InputKindMenu,
		Options:   DefaultOptions(StepNextStep),
	}
}

func (e *Engine) handleNextStep(ctx context.Context, inst model.Instance, conv model.Conversation, creds provider.Credentials, settings model.BotSettings, text string) error {
	q := nextStepQuestion(settings)

	label, valid := MatchOption(QuestionOptions(q), text)
	if !valid {
		_, err := e.sender.Send(ctx, dispatch.KindText, creds, conv, dispatch.Payload{Text: InvalidOptionMessage(q)})
		return err
	}

	if conv.LeadID == nil {
		e.log.Warn("bot: proximo_passo sem lead vinculado",
			zap.String("conversationId", conv.ID),
		)
		return nil
	}
	lead, err := e.repos.Leads.GetByID(ctx, *conv.LeadID)
	if err != nil {
		return fmt.Errorf("bot: carregar lead: %w", err)
	}

	var (
		reply     string
		notifType string
		priority  = model.PriorityNormal
		newStatus model.LeadStatus
	)

	switch label {
	case model.NextStepVisitLabel:
		newStatus = model.LeadStatusInContact
		notifType = model.NotificationVisitScheduled
		priority = model.PriorityHigh
		reply = settings.NextStepVisitReply
		conv.HasScheduledVisit = true
	case model.NextStepDoubtsLabel:
		newStatus = model.LeadStatusAwaitingResponse
		notifType = model.NotificationLeadQuestions
		reply = settings.NextStepDoubtsReply
	case model.NextStepAnalyzeLabel:
		newStatus = model.LeadStatusAwaitingResponse
		notifType = model.NotificationLeadAnalyzing
		reply = settings.NextStepAnalyzeReply
	default:
		_, err := e.sender.Send(ctx, dispatch.KindText, creds, conv, dispatch.Payload{Text: InvalidOptionMessage(q)})
		return err
	}

	oldStatus := lead.Status
	lead.Status = newStatus
	if _, err := e.repos.Leads.Update(ctx, lead); err != nil {
		return fmt.Errorf("bot: atualizar lead: %w", err)
	}

	if _, err := e.repos.History.Append(ctx, model.LeadHistory{
		LeadID:   lead.ID,
		Action:   model.HistoryActionNextStep,
		OldValue: string(oldStatus),
		NewValue: label,
		Actor:    "bot",
	}); err != nil {
		return fmt.Errorf("bot: registrar histórico: %w", err)
	}

	if err := e.notifier.FanOut(ctx, notify.Event{
		Type:     notifType,
		UnitID:   inst.UnitID,
		Title:    "Próximo passo escolhido",
		Message:  fmt.Sprintf("%s escolheu: %s", contactLabel(conv), label),
		Priority: priority,
		Data: map[string]interface{}{
			"conversationId": conv.ID,
			"leadId":         lead.ID,
			"phone":          conv.Phone,
			"contactName":    conv.ContactName,
			"unitId":         inst.UnitID,
			"nextStep":       label,
		},
	}); err != nil {
		e.log.Error("bot: fan-out do próximo passo", zap.Error(err))
	}

	if reply == "" {
		reply = "Combinado! 😊 Nossa equipe entra em contato em breve."
	}
	if _, err := e.sender.Send(ctx, dispatch.KindText, creds, conv, dispatch.Payload{Text: Render(reply, conv.BotData)}); err != nil {
		return err
	}

	final := StepCompleteFinal
	disabled := false
	conv.BotStep = &final
	conv.BotEnabled = &disabled
	if _, err := e.repos.Conversations.Update(ctx, conv); err != nil {
		return fmt.Errorf("bot: atualizar conversa: %w", err)
	}
	return nil
}

func contactLabel(conv model.Conversation) string {
	if conv.ContactName != "" {
		return conv.ContactName
	}
	return conv.Phone
}
