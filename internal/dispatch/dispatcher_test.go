package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zapfesta/zapfesta/internal/pkg/crypto"
	"github.com/zapfesta/zapfesta/internal/provider"
	"github.com/zapfesta/zapfesta/internal/storage"
	"github.com/zapfesta/zapfesta/internal/storage/model"
)

type fakeProvider struct {
	calls []string
	err   error
}

func (p *fakeProvider) SendText(ctx context.Context, creds provider.Credentials, to, text string) (string, error) {
	p.calls = append(p.calls, "text:"+to)
	return "prov-1", p.err
}

func (p *fakeProvider) SendImage(ctx context.Context, creds provider.Credentials, to, mediaURL, caption string) (string, error) {
	p.calls = append(p.calls, "image:"+to)
	return "prov-1", p.err
}

func (p *fakeProvider) SendAudio(ctx context.Context, creds provider.Credentials, to, mediaURL string) (string, error) {
	p.calls = append(p.calls, "audio:"+to)
	return "prov-1", p.err
}

func (p *fakeProvider) SendVideo(ctx context.Context, creds provider.Credentials, to, mediaURL, caption string) (string, error) {
	p.calls = append(p.calls, "video:"+to)
	return "prov-1", p.err
}

func (p *fakeProvider) SendDocument(ctx context.Context, creds provider.Credentials, to, mediaURL, fileName string) (string, error) {
	p.calls = append(p.calls, "document:"+to)
	return "prov-1", p.err
}

type fakeMessages struct {
	created []model.Message
}

func (r *fakeMessages) Create(ctx context.Context, msg model.Message) (model.Message, error) {
	r.created = append(r.created, msg)
	return msg, nil
}

func (r *fakeMessages) GetByID(ctx context.Context, id string) (model.Message, error) {
	return model.Message{}, storage.ErrNotFound
}

func (r *fakeMessages) ListByConversation(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	return nil, nil
}

func (r *fakeMessages) Update(ctx context.Context, msg model.Message) error { return nil }

type fakeConversations struct {
	lastPreview string
	lastFromMe  bool
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
	return model.Conversation{}, storage.ErrNotFound
}

func (r *fakeConversations) ListByInstance(ctx context.Context, instanceID string, limit int) ([]model.Conversation, error) {
	return nil, nil
}

func (r *fakeConversations) Update(ctx context.Context, conv model.Conversation) (model.Conversation, error) {
	return conv, nil
}

func (r *fakeConversations) UpdateLastMessage(ctx context.Context, id, content string, fromMe bool, at time.Time) error {
	r.lastPreview = content
	r.lastFromMe = fromMe
	return nil
}

func testConversation() model.Conversation {
	return model.Conversation{ID: "conv-1", InstanceID: "inst-1", Phone: "5511999990000"}
}

func TestSendPersistsOnSuccess(t *testing.T) {
	prov := &fakeProvider{}
	messages := &fakeMessages{}
	convs := &fakeConversations{}
	d := New(prov, messages, convs, zap.NewNop())

	creds := provider.Credentials{InstanceID: "inst-1", Token: "token"}
	msg, err := d.Send(context.Background(), KindText, creds, testConversation(), Payload{Text: "olá"})
	require.NoError(t, err)

	assert.True(t, msg.FromMe)
	assert.Equal(t, "olá", msg.Content)
	assert.Equal(t, model.MessageStatusSent, msg.Status)
	require.NotNil(t, msg.ProviderID)
	assert.Equal(t, "prov-1", *msg.ProviderID)

	require.Len(t, messages.created, 1)
	assert.Equal(t, "olá", convs.lastPreview)
	assert.True(t, convs.lastFromMe)
}

func TestSendProviderFailureDoesNotPersist(t *testing.T) {
	prov := &fakeProvider{err: errors.New("timeout")}
	messages := &fakeMessages{}
	convs := &fakeConversations{}
	d := New(prov, messages, convs, zap.NewNop())

	creds := provider.Credentials{InstanceID: "inst-1", Token: "token"}
	_, err := d.Send(context.Background(), KindText, creds, testConversation(), Payload{Text: "olá"})
	require.Error(t, err)

	assert.Empty(t, messages.created)
	assert.Empty(t, convs.lastPreview)
}

func TestSendMediaKinds(t *testing.T) {
	prov := &fakeProvider{}
	messages := &fakeMessages{}
	d := New(prov, messages, &fakeConversations{}, zap.NewNop())
	creds := provider.Credentials{InstanceID: "inst-1", Token: "token"}

	msg, err := d.Send(context.Background(), KindImage, creds, testConversation(), Payload{
		MediaURL: "http://cdn/img.jpg",
		Caption:  "Salão principal",
	})
	require.NoError(t, err)
	assert.Equal(t, "Salão principal", msg.Content)
	require.NotNil(t, msg.MediaURL)
	assert.Equal(t, "http://cdn/img.jpg", *msg.MediaURL)

	msg, err = d.Send(context.Background(), KindDocument, creds, testConversation(), Payload{
		MediaURL: "http://cdn/cardapio.pdf",
		FileName: "cardapio.pdf",
	})
	require.NoError(t, err)
	assert.Equal(t, "cardapio.pdf", msg.Content)

	assert.Equal(t, []string{"image:5511999990000", "document:5511999990000"}, prov.calls)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "oi", Preview(KindText, Payload{Text: "oi"}))
	assert.Equal(t, "📷 Salão", Preview(KindImage, Payload{Caption: "Salão"}))
	assert.Equal(t, "📷 Imagem", Preview(KindImage, Payload{}))
	assert.Equal(t, "🎤 Áudio", Preview(KindAudio, Payload{}))
	assert.Equal(t, "🎥 Vídeo", Preview(KindVideo, Payload{}))
	assert.Equal(t, "📄 cardapio.pdf", Preview(KindDocument, Payload{FileName: "cardapio.pdf"}))
	assert.Equal(t, "📄 Documento", Preview(KindDocument, Payload{}))
}

type resolverInstances struct {
	byID      map[string]model.Instance
	connected map[string]model.Instance // por unitID
}

func (r *resolverInstances) Create(ctx context.Context, inst model.Instance) (model.Instance, error) {
	return inst, nil
}

func (r *resolverInstances) GetByID(ctx context.Context, id string) (model.Instance, error) {
	inst, ok := r.byID[id]
	if !ok {
		return model.Instance{}, storage.ErrNotFound
	}
	return inst, nil
}

func (r *resolverInstances) GetByPublicKey(ctx context.Context, publicKey string) (model.Instance, error) {
	return model.Instance{}, storage.ErrNotFound
}

func (r *resolverInstances) GetConnectedByUnit(ctx context.Context, unitID string) (model.Instance, error) {
	inst, ok := r.connected[unitID]
	if !ok {
		return model.Instance{}, storage.ErrNotFound
	}
	return inst, nil
}

func (r *resolverInstances) List(ctx context.Context) ([]model.Instance, error) { return nil, nil }

func (r *resolverInstances) Update(ctx context.Context, inst model.Instance) (model.Instance, error) {
	return inst, nil
}

func (r *resolverInstances) Delete(ctx context.Context, id string) error { return nil }

const resolverTokenKey = "chave-de-teste"

func encInstance(t *testing.T, id, unitID, token string) model.Instance {
	t.Helper()
	enc, err := crypto.Encrypt([]byte(token), resolverTokenKey)
	require.NoError(t, err)
	return model.Instance{ID: id, UnitID: unitID, TokenEnc: enc, Status: model.InstanceStatusConnected}
}

func TestResolveExplicitCredentials(t *testing.T) {
	r := NewResolver(&resolverInstances{}, resolverTokenKey)

	creds, err := r.Resolve(context.Background(), &provider.Credentials{InstanceID: "x", Token: "t"}, "centro", "caller")
	require.NoError(t, err)
	assert.Equal(t, "x", creds.InstanceID)

	_, err = r.Resolve(context.Background(), &provider.Credentials{InstanceID: "x"}, "", "")
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestResolveByUnit(t *testing.T) {
	inst := encInstance(t, "inst-1", "centro", "token-unidade")
	r := NewResolver(&resolverInstances{
		byID:      map[string]model.Instance{"inst-1": inst},
		connected: map[string]model.Instance{"centro": inst},
	}, resolverTokenKey)

	creds, err := r.Resolve(context.Background(), nil, "centro", "")
	require.NoError(t, err)
	assert.Equal(t, "inst-1", creds.InstanceID)
	assert.Equal(t, "token-unidade", creds.Token)

	_, err = r.Resolve(context.Background(), nil, "bairro-sem-instancia", "")
	assert.ErrorIs(t, err, ErrNoConnectedInstance)
}

func TestResolveByCallerInstance(t *testing.T) {
	inst := encInstance(t, "inst-2", "centro", "token-caller")
	r := NewResolver(&resolverInstances{
		byID: map[string]model.Instance{"inst-2": inst},
	}, resolverTokenKey)

	creds, err := r.Resolve(context.Background(), nil, "", "inst-2")
	require.NoError(t, err)
	assert.Equal(t, "token-caller", creds.Token)

	_, err = r.Resolve(context.Background(), nil, "", "inexistente")
	assert.ErrorIs(t, err, ErrInstanceNotFound)
}

func TestResolveWithoutAnySource(t *testing.T) {
	r := NewResolver(&resolverInstances{}, resolverTokenKey)

	_, err := r.Resolve(context.Background(), nil, "", "")
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestCredentialsOfRequiresToken(t *testing.T) {
	r := NewResolver(&resolverInstances{}, resolverTokenKey)

	_, err := r.CredentialsOf(model.Instance{ID: "inst-1"})
	assert.ErrorIs(t, err, ErrMissingCredentials)
}
