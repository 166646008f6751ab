package model

import "time"

type InstanceStatus string

const (
	InstanceStatusPending      InstanceStatus = "pending"
	InstanceStatusConnected    InstanceStatus = "connected"
	InstanceStatusError        InstanceStatus = "error"
	InstanceStatusDisconnected InstanceStatus = "disconnected"
)

// Instance é uma conexão de WhatsApp configurada pelo operador, vinculada a
// uma unidade de negócio. O motor do bot apenas lê esses registros.
type Instance struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	PublicKey string         `json:"publicKey"`
	UnitID    string         `json:"unitId"`
	TokenEnc  []byte         `json:"-"`
	Status    InstanceStatus `json:"status"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Conversation é a thread com um contato em uma instância. BotEnabled nulo
// significa "herdado" (ligado); apenas false explícito bloqueia o bot.
type Conversation struct {
	ID                 string            `json:"id"`
	InstanceID         string            `json:"instanceId"`
	Phone              string            `json:"phone"`
	ContactName        string            `json:"contactName,omitempty"`
	ContactPicture     string            `json:"contactPicture,omitempty"`
	LeadID             *string           `json:"leadId,omitempty"`
	BotEnabled         *bool             `json:"botEnabled,omitempty"`
	BotStep            *string           `json:"botStep,omitempty"`
	BotData            map[string]string `json:"botData,omitempty"`
	Closed             bool              `json:"closed"`
	Favorite           bool              `json:"favorite"`
	IsTeam             bool              `json:"isTeam"`
	IsFreelancer       bool              `json:"isFreelancer"`
	HasScheduledVisit  bool              `json:"hasScheduledVisit"`
	LastMessageContent string            `json:"lastMessageContent,omitempty"`
	LastMessageFromMe  bool              `json:"lastMessageFromMe"`
	LastMessageAt      *time.Time        `json:"lastMessageAt,omitempty"`
	CreatedAt          time.Time         `json:"createdAt"`
	UpdatedAt          time.Time         `json:"updatedAt"`
}

type MessageStatus string

const (
	MessageStatusReceived MessageStatus = "received"
	MessageStatusSent     MessageStatus = "sent"
	MessageStatusFailed   MessageStatus = "failed"
)

// Message pertence a exatamente uma conversa. Enquanto a mídia não foi
// persistida, MediaKey/MediaDirectPath ficam preenchidos; depois que MediaURL
// aponta para o armazenamento durável, ambos são limpos.
type Message struct {
	ID              string        `json:"id"`
	ConversationID  string        `json:"conversationId"`
	ProviderID      *string       `json:"providerId,omitempty"`
	FromMe          bool          `json:"fromMe"`
	Type            string        `json:"type"`
	Content         string        `json:"content,omitempty"`
	MediaURL        *string       `json:"mediaUrl,omitempty"`
	MediaKey        *string       `json:"-"`
	MediaDirectPath *string       `json:"-"`
	MimeType        string        `json:"mimeType,omitempty"`
	Status          MessageStatus `json:"status"`
	Timestamp       time.Time     `json:"timestamp"`
	CreatedAt       time.Time     `json:"createdAt"`
}

// Material é um conteúdo de apresentação enviado automaticamente após a
// qualificação (fotos do espaço, cardápio em PDF, vídeo institucional...).
type Material struct {
	Type    string `json:"type"`
	URL     string `json:"url"`
	Caption string `json:"caption,omitempty"`
}

// BotSettings guarda, por instância, os textos e chaves de funcionamento do
// bot de qualificação.
type BotSettings struct {
	ID                    string     `json:"id"`
	InstanceID            string     `json:"instanceId"`
	Enabled               bool       `json:"enabled"`
	TestMode              bool       `json:"testMode"`
	TestNumber            string     `json:"testNumber,omitempty"`
	WelcomeMessage        string     `json:"welcomeMessage"`
	CompletionMessage     string     `json:"completionMessage"`
	TransferMessage       string     `json:"transferMessage"`
	QualifiedLeadMessage  string     `json:"qualifiedLeadMessage"`
	NextStepQuestion      string     `json:"nextStepQuestion"`
	NextStepVisitReply    string     `json:"nextStepVisitReply"`
	NextStepDoubtsReply   string     `json:"nextStepDoubtsReply"`
	NextStepAnalyzeReply  string     `json:"nextStepAnalyzeReply"`
	AutoSendMaterials     bool       `json:"autoSendMaterials"`
	Materials             []Material `json:"materials,omitempty"`
	FollowupEnabled       bool       `json:"followupEnabled"`
	FollowupDelayHours    int        `json:"followupDelayHours"`
	FollowupTemplate      string     `json:"followupTemplate"`
	Followup2Enabled      bool       `json:"followup2Enabled"`
	Followup2DelayHours   int        `json:"followup2DelayHours"`
	Followup2Template     string     `json:"followup2Template"`
	UpdatedAt             time.Time  `json:"updatedAt"`
}

type QuestionInputKind string

const (
	InputKindText QuestionInputKind = "texto"
	InputKindMenu QuestionInputKind = "menu"
)

// BotQuestion define uma etapa da qualificação. A sequência das perguntas
// ativas, em ordem de SortOrder, é o grafo de estados do bot.
type BotQuestion struct {
	ID           string              `json:"id"`
	InstanceID   string              `json:"instanceId"`
	StepKey      string              `json:"stepKey"`
	Question     string              `json:"question"`
	Confirmation string              `json:"confirmation,omitempty"`
	InputKind    QuestionInputKind   `json:"inputKind"`
	SortOrder    int                 `json:"sortOrder"`
	Active       bool                `json:"active"`
	Options      []BotQuestionOption `json:"options,omitempty"`
}

// BotQuestionOption é uma opção tipada de menu numerado. O texto da pergunta
// é renderizado a partir desta lista, nunca o contrário.
type BotQuestionOption struct {
	ID         string `json:"id"`
	QuestionID string `json:"questionId"`
	Code       string `json:"code"`
	Label      string `json:"label"`
	Position   int    `json:"position"`
}

type LeadStatus string

const (
	LeadStatusNew              LeadStatus = "novo"
	LeadStatusInContact        LeadStatus = "em_contato"
	LeadStatusQuoteSent        LeadStatus = "orcamento_enviado"
	LeadStatusAwaitingResponse LeadStatus = "aguardando_retorno"
	LeadStatusClosed           LeadStatus = "fechado"
	LeadStatusLost             LeadStatus = "perdido"
	LeadStatusTransferred      LeadStatus = "transferido"
)

type Lead struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Phone         string     `json:"phone,omitempty"`
	Email         string     `json:"email,omitempty"`
	UnitID        string     `json:"unitId"`
	EventMonth    string     `json:"eventMonth,omitempty"`
	DayPreference string     `json:"dayPreference,omitempty"`
	GuestCount    string     `json:"guestCount,omitempty"`
	Status        LeadStatus `json:"status"`
	AssigneeID    *string    `json:"assigneeId,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	Source        string     `json:"source,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Qualified informa se todos os quatro campos de qualificação estão
// preenchidos (nome, mês, preferência de dia e convidados).
func (l Lead) Qualified() bool {
	return l.Name != "" && l.EventMonth != "" && l.DayPreference != "" && l.GuestCount != ""
}

// Ações registradas em LeadHistory pelo bot e pelo follow-up. O scheduler usa
// esses rótulos para detectar leads já tratados, então são parte do contrato.
const (
	HistoryActionNextStep  = "Próximo passo escolhido"
	HistoryActionFollowup  = "Follow-up automático enviado"
	HistoryActionFollowup2 = "Follow-up automático #2 enviado"
	HistoryActionStatus    = "Status alterado"
)

// Rótulos das escolhas do menu de próximo passo. Gravados em LeadHistory como
// NewValue; o scheduler de follow-up busca por eles.
const (
	NextStepVisitLabel   = "Agendar uma visita"
	NextStepDoubtsLabel  = "Tirar dúvidas"
	NextStepAnalyzeLabel = "Analisar os materiais"
)

// LeadHistory é a trilha de auditoria append-only de um lead.
type LeadHistory struct {
	ID        string    `json:"id"`
	LeadID    string    `json:"leadId"`
	Action    string    `json:"action"`
	OldValue  string    `json:"oldValue,omitempty"`
	NewValue  string    `json:"newValue,omitempty"`
	Actor     string    `json:"actor"`
	CreatedAt time.Time `json:"createdAt"`
}

type NotificationPriority string

const (
	PriorityHigh   NotificationPriority = "alta"
	PriorityNormal NotificationPriority = "normal"
	PriorityLow    NotificationPriority = "baixa"
)

const (
	NotificationExistingClient = "existing_client"
	NotificationVisitScheduled = "visit_scheduled"
	NotificationLeadQuestions  = "lead_questions"
	NotificationLeadAnalyzing  = "lead_analyzing"
	NotificationFollowupSent   = "followup_sent"
)

// Notification é um registro por destinatário; a entrega em tempo real é
// feita por um colaborador externo que observa novas linhas.
type Notification struct {
	ID        string                 `json:"id"`
	UserID    string                 `json:"userId"`
	Type      string                 `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Priority  NotificationPriority   `json:"priority"`
	Read      bool                   `json:"read"`
	CreatedAt time.Time              `json:"createdAt"`
}

// VipNumber é um contato que nunca passa pelo bot.
type VipNumber struct {
	ID         string    `json:"id"`
	InstanceID string    `json:"instanceId"`
	Phone      string    `json:"phone"`
	Label      string    `json:"label,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

const (
	RoleAdmin     = "admin"
	RoleAtendente = "atendente"
)

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

// UnitAll em uma permissão concede acesso a leads de todas as unidades.
const UnitAll = "*"

type UserPermission struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	UnitID string `json:"unitId"`
}
