package bot

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zapfesta/zapfesta/internal/dispatch"
	lockmemory "github.com/zapfesta/zapfesta/internal/pkg/lock/memory"
	taskmemory "github.com/zapfesta/zapfesta/internal/pkg/task/memory"
	"github.com/zapfesta/zapfesta/internal/notify"
	"github.com/zapfesta/zapfesta/internal/provider"
	"github.com/zapfesta/zapfesta/internal/storage"
	"github.com/zapfesta/zapfesta/internal/storage/model"
)

type sentMessage struct {
	kind dispatch.Kind
	text string
}

type fakeSender struct {
	sent []sentMessage
}

func (s *fakeSender) Send(ctx context.Context, kind dispatch.Kind, creds provider.Credentials, conv model.Conversation, p dispatch.Payload) (model.Message, error) {
	s.sent = append(s.sent, sentMessage{kind: kind, text: p.Text})
	return model.Message{ID: "msg", ConversationID: conv.ID}, nil
}

type fakeNotifier struct {
	events []notify.Event
}

func (n *fakeNotifier) FanOut(ctx context.Context, ev notify.Event) error {
	n.events = append(n.events, ev)
	return nil
}

type fakeConversations struct {
	convs map[string]model.Conversation
}

func (r *fakeConversations) Create(ctx context.Context, conv model.Conversation) (model.Conversation, error) {
	r.convs[conv.ID] = conv
	return conv, nil
}

func (r *fakeConversations) GetByID(ctx context.Context, id string) (model.Conversation, error) {
	conv, ok := r.convs[id]
	if !ok {
		return model.Conversation{}, storage.ErrNotFound
	}
	return conv, nil
}

func (r *fakeConversations) GetByInstanceAndPhone(ctx context.Context, instanceID, phone string) (model.Conversation, error) {
	return model.Conversation{}, storage.ErrNotFound
}

func (r *fakeConversations) GetByLead(ctx context.Context, leadID string) (model.Conversation, error) {
	for _, conv := range r.convs {
		if conv.LeadID != nil && *conv.LeadID == leadID {
			return conv, nil
		}
	}
	return model.Conversation{}, storage.ErrNotFound
}

func (r *fakeConversations) ListByInstance(ctx context.Context, instanceID string, limit int) ([]model.Conversation, error) {
	return nil, nil
}

func (r *fakeConversations) Update(ctx context.Context, conv model.Conversation) (model.Conversation, error) {
	r.convs[conv.ID] = conv
	return conv, nil
}

func (r *fakeConversations) UpdateLastMessage(ctx context.Context, id, content string, fromMe bool, at time.Time) error {
	return nil
}

type fakeSettings struct {
	settings model.BotSettings
	missing  bool
}

func (r *fakeSettings) GetByInstance(ctx context.Context, instanceID string) (model.BotSettings, error) {
	if r.missing {
		return model.BotSettings{}, storage.ErrNotFound
	}
	return r.settings, nil
}

func (r *fakeSettings) Save(ctx context.Context, s model.BotSettings) (model.BotSettings, error) {
	r.settings = s
	return s, nil
}

type fakeQuestions struct {
	questions []model.BotQuestion
}

func (r *fakeQuestions) ListActiveByInstance(ctx context.Context, instanceID string) ([]model.BotQuestion, error) {
	return r.questions, nil
}

func (r *fakeQuestions) Save(ctx context.Context, q model.BotQuestion) (model.BotQuestion, error) {
	r.questions = append(r.questions, q)
	return q, nil
}

func (r *fakeQuestions) Delete(ctx context.Context, id string) error { return nil }

type fakeLeads struct {
	leads   map[string]model.Lead
	created int
	updated int
}

func (r *fakeLeads) Create(ctx context.Context, lead model.Lead) (model.Lead, error) {
	r.created++
	r.leads[lead.ID] = lead
	return lead, nil
}

func (r *fakeLeads) GetByID(ctx context.Context, id string) (model.Lead, error) {
	lead, ok := r.leads[id]
	if !ok {
		return model.Lead{}, storage.ErrNotFound
	}
	return lead, nil
}

func (r *fakeLeads) GetByPhone(ctx context.Context, phone string) (model.Lead, error) {
	for _, lead := range r.leads {
		if lead.Phone == phone {
			return lead, nil
		}
	}
	return model.Lead{}, storage.ErrNotFound
}

func (r *fakeLeads) Update(ctx context.Context, lead model.Lead) (model.Lead, error) {
	r.updated++
	r.leads[lead.ID] = lead
	return lead, nil
}

func (r *fakeLeads) List(ctx context.Context, unitID string, limit int) ([]model.Lead, error) {
	return nil, nil
}

type fakeHistory struct {
	entries []model.LeadHistory
}

func (r *fakeHistory) Append(ctx context.Context, entry model.LeadHistory) (model.LeadHistory, error) {
	r.entries = append(r.entries, entry)
	return entry, nil
}

func (r *fakeHistory) ListByLead(ctx context.Context, leadID string) ([]model.LeadHistory, error) {
	var out []model.LeadHistory
	for _, e := range r.entries {
		if e.LeadID == leadID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeHistory) HasAction(ctx context.Context, leadID, action string) (bool, error) {
	for _, e := range r.entries {
		if e.LeadID == leadID && e.Action == action {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeHistory) LeadIDsWithActionBetween(ctx context.Context, action, newValue string, from, to time.Time) ([]string, error) {
	var ids []string
	for _, e := range r.entries {
		if e.Action == action && e.NewValue == newValue {
			ids = append(ids, e.LeadID)
		}
	}
	return ids, nil
}

type fakeVips struct {
	phones map[string]bool
}

func (r *fakeVips) Add(ctx context.Context, vip model.VipNumber) (model.VipNumber, error) {
	r.phones[vip.Phone] = true
	return vip, nil
}

func (r *fakeVips) Remove(ctx context.Context, id string) error { return nil }

func (r *fakeVips) ListByInstance(ctx context.Context, instanceID string) ([]model.VipNumber, error) {
	return nil, nil
}

func (r *fakeVips) Exists(ctx context.Context, instanceID, phone string) (bool, error) {
	return r.phones[phone], nil
}

type engineFixture struct {
	engine        *Engine
	sender        *fakeSender
	notifier      *fakeNotifier
	conversations *fakeConversations
	settings      *fakeSettings
	questions     *fakeQuestions
	leads         *fakeLeads
	history       *fakeHistory
	vips          *fakeVips
	queue         *taskmemory.MemoryQueue
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	f := &engineFixture{
		sender:        &fakeSender{},
		notifier:      &fakeNotifier{},
		conversations: &fakeConversations{convs: make(map[string]model.Conversation)},
		settings:      &fakeSettings{settings: model.BotSettings{Enabled: true}},
		questions:     &fakeQuestions{},
		leads:         &fakeLeads{leads: make(map[string]model.Lead)},
		history:       &fakeHistory{},
		vips:          &fakeVips{phones: make(map[string]bool)},
		queue:         taskmemory.NewQueue(16),
	}

	creds := func(inst model.Instance) (provider.Credentials, error) {
		return provider.Credentials{InstanceID: inst.ID, Token: "token"}, nil
	}

	f.engine = NewEngine(
		Repos{
			Conversations: f.conversations,
			Settings:      f.settings,
			Questions:     f.questions,
			Leads:         f.leads,
			History:       f.history,
			Vips:          f.vips,
		},
		f.sender,
		f.notifier,
		f.queue,
		lockmemory.NewLocker(),
		time.Second,
		creds,
		zap.NewNop(),
	)
	return f
}

func testInstance() model.Instance {
	return model.Instance{ID: "inst-1", Name: "Unidade Centro", UnitID: "centro", Status: model.InstanceStatusConnected}
}

func (f *engineFixture) conversationAt(step string, data map[string]string) model.Conversation {
	conv := model.Conversation{
		ID:         "conv-1",
		InstanceID: "inst-1",
		Phone:      "5511999990000",
		BotData:    data,
	}
	if step != "" {
		conv.BotStep = &step
	}
	f.conversations.convs[conv.ID] = conv
	return conv
}

func TestHandleInboundWelcomeSendsFirstQuestion(t *testing.T) {
	f := newEngineFixture(t)
	conv := f.conversationAt("", nil)

	err := f.engine.HandleInbound(context.Background(), testInstance(), conv, "oi")
	require.NoError(t, err)

	require.Len(t, f.sender.sent, 1)
	assert.Contains(t, f.sender.sent[0].text, "já é nosso cliente ou quer um orçamento")
	assert.Contains(t, f.sender.sent[0].text, "*1* - Quero um orçamento")

	saved := f.conversations.convs[conv.ID]
	require.NotNil(t, saved.BotStep)
	assert.Equal(t, StepContactType, *saved.BotStep)
}

func TestHandleInboundWelcomePrefixesCustomMessage(t *testing.T) {
	f := newEngineFixture(t)
	f.settings.settings.WelcomeMessage = "Olá! Que bom ter você por aqui. 🎉"
	conv := f.conversationAt("", nil)

	require.NoError(t, f.engine.HandleInbound(context.Background(), testInstance(), conv, "oi"))

	require.Len(t, f.sender.sent, 1)
	assert.True(t, strings.HasPrefix(f.sender.sent[0].text, "Olá! Que bom ter você por aqui. 🎉\n\n"))
}

func TestHandleInboundInvalidMenuAnswerDoesNotMutateState(t *testing.T) {
	f := newEngineFixture(t)
	conv := f.conversationAt(StepMonth, map[string]string{StepName: "Ana"})

	err := f.engine.HandleInbound(context.Background(), testInstance(), conv, "qualquer coisa")
	require.NoError(t, err)

	require.Len(t, f.sender.sent, 1)
	assert.Contains(t, f.sender.sent[0].text, "Ops, não entendi")

	saved := f.conversations.convs[conv.ID]
	assert.Equal(t, StepMonth, *saved.BotStep)
	assert.NotContains(t, saved.BotData, StepMonth)
}

func TestHandleInboundMenuAnswerByNumberAdvances(t *testing.T) {
	f := newEngineFixture(t)
	conv := f.conversationAt(StepMonth, map[string]string{StepName: "Ana"})

	err := f.engine.HandleInbound(context.Background(), testInstance(), conv, "2")
	require.NoError(t, err)

	saved := f.conversations.convs[conv.ID]
	assert.Equal(t, "Fevereiro", saved.BotData[StepMonth])
	assert.Equal(t, StepDayPreference, *saved.BotStep)
}

func TestHandleInboundMenuAnswerByLabelCaseInsensitive(t *testing.T) {
	f := newEngineFixture(t)
	conv := f.conversationAt(StepMonth, map[string]string{StepName: "Ana"})

	err := f.engine.HandleInbound(context.Background(), testInstance(), conv, "fevereiro")
	require.NoError(t, err)

	saved := f.conversations.convs[conv.ID]
	assert.Equal(t, "Fevereiro", saved.BotData[StepMonth])
}

func TestHandleInboundNameStepRejectsShortInput(t *testing.T) {
	f := newEngineFixture(t)
	conv := f.conversationAt(StepName, map[string]string{StepContactType: "Quero um orçamento"})

	require.NoError(t, f.engine.HandleInbound(context.Background(), testInstance(), conv, "7"))

	saved := f.conversations.convs[conv.ID]
	assert.Equal(t, StepName, *saved.BotStep)
	assert.NotContains(t, saved.BotData, StepName)
}

func TestHandleInboundNameConfirmationRendered(t *testing.T) {
	f := newEngineFixture(t)
	conv := f.conversationAt(StepName, map[string]string{StepContactType: "Quero um orçamento"})

	require.NoError(t, f.engine.HandleInbound(context.Background(), testInstance(), conv, "Maria Clara"))

	require.Len(t, f.sender.sent, 1)
	assert.Contains(t, f.sender.sent[0].text, "Prazer, Maria Clara! 😊")
	saved := f.conversations.convs[conv.ID]
	assert.Equal(t, StepMonth, *saved.BotStep)
}

func TestHandleInboundExistingClientTransfers(t *testing.T) {
	f := newEngineFixture(t)
	conv := f.conversationAt(StepContactType, nil)

	err := f.engine.HandleInbound(context.Background(), testInstance(), conv, "2")
	require.NoError(t, err)

	saved := f.conversations.convs[conv.ID]
	assert.Equal(t, StepTransferred, *saved.BotStep)
	require.NotNil(t, saved.BotEnabled)
	assert.False(t, *saved.BotEnabled)

	assert.Zero(t, f.leads.created)
	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, model.NotificationExistingClient, f.notifier.events[0].Type)
	assert.Equal(t, "centro", f.notifier.events[0].UnitID)
}

func TestHandleInboundLastAnswerCompletesQualification(t *testing.T) {
	f := newEngineFixture(t)
	conv := f.conversationAt(StepGuestCount, map[string]string{
		StepContactType:   "Quero um orçamento",
		StepName:          "Ana",
		StepMonth:         "Maio",
		StepDayPreference: "Sábado",
	})

	err := f.engine.HandleInbound(context.Background(), testInstance(), conv, "1")
	require.NoError(t, err)

	require.Equal(t, 1, f.leads.created)
	var lead model.Lead
	for _, l := range f.leads.leads {
		lead = l
	}
	assert.Equal(t, "Ana", lead.Name)
	assert.Equal(t, "Maio", lead.EventMonth)
	assert.Equal(t, "Até 50", lead.GuestCount)
	assert.Equal(t, model.LeadStatusNew, lead.Status)
	assert.Equal(t, "bot_whatsapp", lead.Source)

	saved := f.conversations.convs[conv.ID]
	assert.Equal(t, StepSendingMaterials, *saved.BotStep)
	require.NotNil(t, saved.LeadID)

	queued, err := f.queue.Dequeue(context.Background(), 10*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, queued)
	assert.Equal(t, "send_materials", queued.Type)
	assert.Equal(t, conv.ID, queued.Payload["conversationId"])

	require.Len(t, f.sender.sent, 1)
	assert.Contains(t, f.sender.sent[0].text, "Perfeito, Ana!")
}

func TestHandleInboundNextStepVisit(t *testing.T) {
	f := newEngineFixture(t)
	lead := model.Lead{ID: "lead-1", Name: "Ana", UnitID: "centro", Status: model.LeadStatusNew}
	f.leads.leads[lead.ID] = lead

	conv := f.conversationAt(StepNextStep, map[string]string{StepName: "Ana"})
	conv.LeadID = &lead.ID
	f.conversations.convs[conv.ID] = conv

	err := f.engine.HandleInbound(context.Background(), testInstance(), conv, "1")
	require.NoError(t, err)

	updated := f.leads.leads[lead.ID]
	assert.Equal(t, model.LeadStatusInContact, updated.Status)

	saved := f.conversations.convs[conv.ID]
	assert.True(t, saved.HasScheduledVisit)
	assert.Equal(t, StepCompleteFinal, *saved.BotStep)
	assert.False(t, *saved.BotEnabled)

	require.Len(t, f.history.entries, 1)
	assert.Equal(t, model.HistoryActionNextStep, f.history.entries[0].Action)
	assert.Equal(t, string(model.LeadStatusNew), f.history.entries[0].OldValue)
	assert.Equal(t, model.NextStepVisitLabel, f.history.entries[0].NewValue)
	assert.Equal(t, "bot", f.history.entries[0].Actor)

	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, model.NotificationVisitScheduled, f.notifier.events[0].Type)
	assert.Equal(t, model.PriorityHigh, f.notifier.events[0].Priority)
}

func TestHandleInboundNextStepAnalyzeMaterials(t *testing.T) {
	f := newEngineFixture(t)
	lead := model.Lead{ID: "lead-1", Name: "Ana", UnitID: "centro", Status: model.LeadStatusNew}
	f.leads.leads[lead.ID] = lead

	conv := f.conversationAt(StepNextStep, map[string]string{StepName: "Ana"})
	conv.LeadID = &lead.ID
	f.conversations.convs[conv.ID] = conv

	err := f.engine.HandleInbound(context.Background(), testInstance(), conv, model.NextStepAnalyzeLabel)
	require.NoError(t, err)

	updated := f.leads.leads[lead.ID]
	assert.Equal(t, model.LeadStatusAwaitingResponse, updated.Status)

	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, model.NotificationLeadAnalyzing, f.notifier.events[0].Type)
}

func TestHandleInboundNextStepInvalidRepeatsMenu(t *testing.T) {
	f := newEngineFixture(t)
	lead := model.Lead{ID: "lead-1", Name: "Ana", UnitID: "centro", Status: model.LeadStatusNew}
	f.leads.leads[lead.ID] = lead

	conv := f.conversationAt(StepNextStep, nil)
	conv.LeadID = &lead.ID
	f.conversations.convs[conv.ID] = conv

	require.NoError(t, f.engine.HandleInbound(context.Background(), testInstance(), conv, "9"))

	require.Len(t, f.sender.sent, 1)
	assert.Contains(t, f.sender.sent[0].text, "Ops, não entendi")
	assert.Equal(t, model.LeadStatusNew, f.leads.leads[lead.ID].Status)
	assert.Empty(t, f.history.entries)
}

func TestHandleInboundQualifiedFromLPSingleGreeting(t *testing.T) {
	f := newEngineFixture(t)
	f.settings.settings.QualifiedLeadMessage = "Oi, {nome}! Recebemos seu interesse para {mes}."

	lead := model.Lead{
		ID: "lead-1", Name: "Bruna", UnitID: "centro",
		EventMonth: "Julho", DayPreference: "Sábado", GuestCount: "Até 50",
		Status: model.LeadStatusNew,
	}
	f.leads.leads[lead.ID] = lead

	conv := f.conversationAt("", nil)
	conv.LeadID = &lead.ID
	f.conversations.convs[conv.ID] = conv

	require.NoError(t, f.engine.HandleInbound(context.Background(), testInstance(), conv, "oi"))

	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, "Oi, Bruna! Recebemos seu interesse para Julho.", f.sender.sent[0].text)

	saved := f.conversations.convs[conv.ID]
	assert.Equal(t, StepQualifiedFromLP, *saved.BotStep)
	assert.False(t, *saved.BotEnabled)

	// Segunda mensagem não dispara nada: o bot está desabilitado.
	require.NoError(t, f.engine.HandleInbound(context.Background(), testInstance(), saved, "oi de novo"))
	assert.Len(t, f.sender.sent, 1)
}

func TestHandleInboundUnqualifiedLeadEntersChain(t *testing.T) {
	f := newEngineFixture(t)
	lead := model.Lead{ID: "lead-1", Name: "Bruna", UnitID: "centro", Status: model.LeadStatusNew}
	f.leads.leads[lead.ID] = lead

	conv := f.conversationAt("", nil)
	conv.LeadID = &lead.ID
	f.conversations.convs[conv.ID] = conv

	require.NoError(t, f.engine.HandleInbound(context.Background(), testInstance(), conv, "oi"))

	saved := f.conversations.convs[conv.ID]
	assert.Equal(t, StepContactType, *saved.BotStep)
}

func TestHandleInboundBotDisabledIsNoop(t *testing.T) {
	f := newEngineFixture(t)
	conv := f.conversationAt("", nil)
	disabled := false
	conv.BotEnabled = &disabled
	f.conversations.convs[conv.ID] = conv

	require.NoError(t, f.engine.HandleInbound(context.Background(), testInstance(), conv, "oi"))
	assert.Empty(t, f.sender.sent)
}

func TestHandleInboundVipIsNoop(t *testing.T) {
	f := newEngineFixture(t)
	conv := f.conversationAt("", nil)
	f.vips.phones[conv.Phone] = true

	require.NoError(t, f.engine.HandleInbound(context.Background(), testInstance(), conv, "oi"))
	assert.Empty(t, f.sender.sent)
}

func TestHandleInboundTestModeOnlyTestNumber(t *testing.T) {
	f := newEngineFixture(t)
	f.settings.settings.TestMode = true
	f.settings.settings.TestNumber = "5511888880000"
	conv := f.conversationAt("", nil)

	require.NoError(t, f.engine.HandleInbound(context.Background(), testInstance(), conv, "oi"))
	assert.Empty(t, f.sender.sent)

	conv.Phone = "5511888880000"
	f.conversations.convs[conv.ID] = conv
	require.NoError(t, f.engine.HandleInbound(context.Background(), testInstance(), conv, "oi"))
	assert.Len(t, f.sender.sent, 1)
}

func TestHandleInboundMissingSettingsIsNoop(t *testing.T) {
	f := newEngineFixture(t)
	f.settings.missing = true
	conv := f.conversationAt("", nil)

	require.NoError(t, f.engine.HandleInbound(context.Background(), testInstance(), conv, "oi"))
	assert.Empty(t, f.sender.sent)
}

func TestHandleInboundTerminalStepsAreNoop(t *testing.T) {
	f := newEngineFixture(t)
	for _, step := range []string{StepSendingMaterials, StepCompleteFinal, StepTransferred, StepQualifiedFromLP} {
		conv := f.conversationAt(step, nil)
		require.NoError(t, f.engine.HandleInbound(context.Background(), testInstance(), conv, "oi"))
	}
	assert.Empty(t, f.sender.sent)
}
