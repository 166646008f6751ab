package followup

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zapfesta/zapfesta/internal/dispatch"
	"github.com/zapfesta/zapfesta/internal/notify"
	"github.com/zapfesta/zapfesta/internal/provider"
	"github.com/zapfesta/zapfesta/internal/storage"
	"github.com/zapfesta/zapfesta/internal/storage/model"
)

type fakeInstances struct {
	instances []model.Instance
}

func (r *fakeInstances) Create(ctx context.Context, inst model.Instance) (model.Instance, error) {
	return inst, nil
}

func (r *fakeInstances) GetByID(ctx context.Context, id string) (model.Instance, error) {
	for _, inst := range r.instances {
		if inst.ID == id {
			return inst, nil
		}
	}
	return model.Instance{}, storage.ErrNotFound
}

func (r *fakeInstances) GetByPublicKey(ctx context.Context, publicKey string) (model.Instance, error) {
	return model.Instance{}, storage.ErrNotFound
}

func (r *fakeInstances) GetConnectedByUnit(ctx context.Context, unitID string) (model.Instance, error) {
	return model.Instance{}, storage.ErrNotFound
}

func (r *fakeInstances) List(ctx context.Context) ([]model.Instance, error) {
	return r.instances, nil
}

func (r *fakeInstances) Update(ctx context.Context, inst model.Instance) (model.Instance, error) {
	return inst, nil
}

func (r *fakeInstances) Delete(ctx context.Context, id string) error { return nil }

type fakeSettings struct {
	byInstance map[string]model.BotSettings
}

func (r *fakeSettings) GetByInstance(ctx context.Context, instanceID string) (model.BotSettings, error) {
	s, ok := r.byInstance[instanceID]
	if !ok {
		return model.BotSettings{}, storage.ErrNotFound
	}
	return s, nil
}

func (r *fakeSettings) Save(ctx context.Context, s model.BotSettings) (model.BotSettings, error) {
	r.byInstance[s.InstanceID] = s
	return s, nil
}

type fakeLeads struct {
	leads map[string]model.Lead
}

func (r *fakeLeads) Create(ctx context.Context, lead model.Lead) (model.Lead, error) {
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
	return model.Lead{}, storage.ErrNotFound
}

func (r *fakeLeads) Update(ctx context.Context, lead model.Lead) (model.Lead, error) {
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
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	r.entries = append(r.entries, entry)
	return entry, nil
}

func (r *fakeHistory) ListByLead(ctx context.Context, leadID string) ([]model.LeadHistory, error) {
	return nil, nil
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
		if e.Action == action && e.NewValue == newValue && !e.CreatedAt.Before(from) && !e.CreatedAt.After(to) {
			ids = append(ids, e.LeadID)
		}
	}
	return ids, nil
}

type fakeConversations struct {
	convs map[string]model.Conversation // por leadID
}

func (r *fakeConversations) Create(ctx context.Context, conv model.Conversation) (model.Conversation, error) {
	return conv, nil
}

func (r *fakeConversations) GetByID(ctx context.Context, id string) (model.Conversation, error) {
	return model.Conversation{}, storage.ErrNotFound
}

func (r *fakeConversations) GetByInstanceAndPhone(ctx context.Context, instanceID, phone string) (model.Conversation, error) {
	return model.Conversation{}, storage.ErrNotFound
}

func (r *fakeConversations) GetByLead(ctx context.Context, leadID string) (model.Conversation, error) {
	conv, ok := r.convs[leadID]
	if !ok {
		return model.Conversation{}, storage.ErrNotFound
	}
	return conv, nil
}

func (r *fakeConversations) ListByInstance(ctx context.Context, instanceID string, limit int) ([]model.Conversation, error) {
	return nil, nil
}

func (r *fakeConversations) Update(ctx context.Context, conv model.Conversation) (model.Conversation, error) {
	return conv, nil
}

func (r *fakeConversations) UpdateLastMessage(ctx context.Context, id, content string, fromMe bool, at time.Time) error {
	return nil
}

type fakeSender struct {
	sent    []string
	failFor map[string]bool // por conversationId
}

func (s *fakeSender) Send(ctx context.Context, kind dispatch.Kind, creds provider.Credentials, conv model.Conversation, p dispatch.Payload) (model.Message, error) {
	if s.failFor[conv.ID] {
		return model.Message{}, errors.New("provider indisponível")
	}
	s.sent = append(s.sent, p.Text)
	return model.Message{ID: "msg"}, nil
}

type fakeNotifier struct {
	events []notify.Event
}

func (n *fakeNotifier) FanOut(ctx context.Context, ev notify.Event) error {
	n.events = append(n.events, ev)
	return nil
}

type schedulerFixture struct {
	scheduler     *Scheduler
	instances     *fakeInstances
	settings      *fakeSettings
	leads         *fakeLeads
	history       *fakeHistory
	conversations *fakeConversations
	sender        *fakeSender
	notifier      *fakeNotifier
}

func newSchedulerFixture(t *testing.T) *schedulerFixture {
	t.Helper()

	f := &schedulerFixture{
		instances:     &fakeInstances{},
		settings:      &fakeSettings{byInstance: make(map[string]model.BotSettings)},
		leads:         &fakeLeads{leads: make(map[string]model.Lead)},
		history:       &fakeHistory{},
		conversations: &fakeConversations{convs: make(map[string]model.Conversation)},
		sender:        &fakeSender{failFor: make(map[string]bool)},
		notifier:      &fakeNotifier{},
	}

	creds := func(inst model.Instance) (provider.Credentials, error) {
		return provider.Credentials{InstanceID: inst.ID, Token: "token"}, nil
	}

	f.scheduler = NewScheduler(
		f.instances, f.settings, f.leads, f.history, f.conversations,
		f.sender, f.notifier, creds, zap.NewNop(),
	)
	return f
}

// addEligibleLead monta um lead aguardando retorno que escolheu "analisar os
// materiais" há choiceAge.
func (f *schedulerFixture) addEligibleLead(id string, choiceAge time.Duration) {
	f.leads.leads[id] = model.Lead{
		ID:     id,
		Name:   "Ana",
		UnitID: "centro",
		Status: model.LeadStatusAwaitingResponse,
	}
	f.history.entries = append(f.history.entries, model.LeadHistory{
		LeadID:    id,
		Action:    model.HistoryActionNextStep,
		NewValue:  model.NextStepAnalyzeLabel,
		Actor:     "bot",
		CreatedAt: time.Now().Add(-choiceAge),
	})
	f.conversations.convs[id] = model.Conversation{
		ID:         "conv-" + id,
		InstanceID: "inst-1",
		Phone:      "5511999990000",
	}
}

func (f *schedulerFixture) withInstance(settings model.BotSettings) {
	inst := model.Instance{ID: "inst-1", UnitID: "centro", Status: model.InstanceStatusConnected}
	f.instances.instances = append(f.instances.instances, inst)
	settings.InstanceID = inst.ID
	f.settings.byInstance[inst.ID] = settings
}

func TestRunSendsTier1(t *testing.T) {
	f := newSchedulerFixture(t)
	f.withInstance(model.BotSettings{
		FollowupEnabled:    true,
		FollowupDelayHours: 24,
		FollowupTemplate:   "Oi, {nome}! Conseguiu ver os materiais?",
	})
	f.addEligibleLead("lead-1", 30*time.Hour)

	result := f.scheduler.Run(context.Background())

	assert.Equal(t, 1, result.Sent)
	assert.Empty(t, result.Errors)

	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, "Oi, Ana! Conseguiu ver os materiais?", f.sender.sent[0])

	sent, err := f.history.HasAction(context.Background(), "lead-1", model.HistoryActionFollowup)
	require.NoError(t, err)
	assert.True(t, sent)

	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, model.NotificationFollowupSent, f.notifier.events[0].Type)
	assert.Equal(t, model.PriorityLow, f.notifier.events[0].Priority)
}

func TestRunIsIdempotent(t *testing.T) {
	f := newSchedulerFixture(t)
	f.withInstance(model.BotSettings{FollowupEnabled: true, FollowupDelayHours: 24})
	f.addEligibleLead("lead-1", 30*time.Hour)

	first := f.scheduler.Run(context.Background())
	assert.Equal(t, 1, first.Sent)

	second := f.scheduler.Run(context.Background())
	assert.Zero(t, second.Sent)
	assert.Empty(t, second.Errors)
	assert.Len(t, f.sender.sent, 1)
}

func TestRunTier2RequiresTier1Marker(t *testing.T) {
	f := newSchedulerFixture(t)
	f.withInstance(model.BotSettings{
		Followup2Enabled:    true,
		Followup2DelayHours: 48,
	})
	f.addEligibleLead("lead-1", 60*time.Hour)

	result := f.scheduler.Run(context.Background())
	assert.Zero(t, result.Sent)
	assert.Empty(t, f.sender.sent)
}

func TestRunTier2AfterTier1(t *testing.T) {
	f := newSchedulerFixture(t)
	f.withInstance(model.BotSettings{
		Followup2Enabled:    true,
		Followup2DelayHours: 48,
	})
	f.addEligibleLead("lead-1", 60*time.Hour)
	f.history.entries = append(f.history.entries, model.LeadHistory{
		LeadID:    "lead-1",
		Action:    model.HistoryActionFollowup,
		CreatedAt: time.Now().Add(-30 * time.Hour),
	})

	result := f.scheduler.Run(context.Background())
	assert.Equal(t, 1, result.Sent)

	sent, err := f.history.HasAction(context.Background(), "lead-1", model.HistoryActionFollowup2)
	require.NoError(t, err)
	assert.True(t, sent)
}

func TestRunSkipsLeadsOutsideWindow(t *testing.T) {
	f := newSchedulerFixture(t)
	f.withInstance(model.BotSettings{FollowupEnabled: true, FollowupDelayHours: 24})

	// Escolha recente demais e escolha velha demais: nenhuma entra.
	f.addEligibleLead("recente", 10*time.Hour)
	f.addEligibleLead("antigo", 80*time.Hour)

	result := f.scheduler.Run(context.Background())
	assert.Zero(t, result.Sent)
	assert.Empty(t, f.sender.sent)
}

func TestRunSkipsLeadWithChangedStatus(t *testing.T) {
	f := newSchedulerFixture(t)
	f.withInstance(model.BotSettings{FollowupEnabled: true, FollowupDelayHours: 24})
	f.addEligibleLead("lead-1", 30*time.Hour)

	lead := f.leads.leads["lead-1"]
	lead.Status = model.LeadStatusClosed
	f.leads.leads["lead-1"] = lead

	result := f.scheduler.Run(context.Background())
	assert.Zero(t, result.Sent)
	assert.Empty(t, result.Errors)
}

func TestRunSkipsConversationFromOtherInstance(t *testing.T) {
	f := newSchedulerFixture(t)
	f.withInstance(model.BotSettings{FollowupEnabled: true, FollowupDelayHours: 24})
	f.addEligibleLead("lead-1", 30*time.Hour)

	conv := f.conversations.convs["lead-1"]
	conv.InstanceID = "inst-2"
	f.conversations.convs["lead-1"] = conv

	result := f.scheduler.Run(context.Background())
	assert.Zero(t, result.Sent)
	assert.Empty(t, result.Errors)
}

func TestRunIsolatesPerLeadFailures(t *testing.T) {
	f := newSchedulerFixture(t)
	f.withInstance(model.BotSettings{FollowupEnabled: true, FollowupDelayHours: 24})
	f.addEligibleLead("lead-ok", 30*time.Hour)
	f.addEligibleLead("lead-falha", 30*time.Hour)
	f.sender.failFor["conv-lead-falha"] = true

	result := f.scheduler.Run(context.Background())

	assert.Equal(t, 1, result.Sent)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "lead-falha")

	// O lead com falha não ganha marcador; a próxima execução tenta de novo.
	sent, err := f.history.HasAction(context.Background(), "lead-falha", model.HistoryActionFollowup)
	require.NoError(t, err)
	assert.False(t, sent)
}

func TestRunDefaultTemplate(t *testing.T) {
	f := newSchedulerFixture(t)
	f.withInstance(model.BotSettings{FollowupEnabled: true, FollowupDelayHours: 24})
	f.addEligibleLead("lead-1", 30*time.Hour)

	result := f.scheduler.Run(context.Background())
	require.Equal(t, 1, result.Sent)
	assert.Equal(t, fmt.Sprintf("Oi, %s! 👋 Conseguiu dar uma olhada nos materiais que enviamos?", "Ana"), f.sender.sent[0])
}
