package bot

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/zapfesta/zapfesta/internal/dispatch"
	"github.com/zapfesta/zapfesta/internal/pkg/task"
	"github.com/zapfesta/zapfesta/internal/provider"
	"github.com/zapfesta/zapfesta/internal/storage"
	"github.com/zapfesta/zapfesta/internal/storage/model"
)

// MaterialsHandler é a continuação em segundo plano disparada ao fim da
// qualificação: envia os materiais configurados e, na sequência, a pergunta
// de próximo passo. Falhas de itens individuais não interrompem a sequência.
func (e *Engine) MaterialsHandler(instances storage.InstanceRepository) task.Handler {
	return func(ctx context.Context, t task.Task) error {
		convID := t.Payload["conversationId"]
		if convID == "" {
			return fmt.Errorf("bot: tarefa de materiais sem conversationId")
		}

		conv, err := e.repos.Conversations.GetByID(ctx, convID)
		if err != nil {
			return fmt.Errorf("bot: carregar conversa: %w", err)
		}

		inst, err := instances.GetByID(ctx, t.InstanceID)
		if err != nil {
			return fmt.Errorf("bot: carregar instância: %w", err)
		}

		creds, err := e.creds(inst)
		if err != nil {
			return err
		}

		settings, err := e.repos.Settings.GetByInstance(ctx, inst.ID)
		if err != nil {
			return fmt.Errorf("bot: carregar configurações: %w", err)
		}

		if settings.AutoSendMaterials {
			for _, m := range settings.Materials {
				if err := e.sendMaterial(ctx, creds, conv, m); err != nil {
					e.log.Error("bot: enviar material",
						zap.String("conversationId", conv.ID),
						zap.String("url", m.URL),
						zap.Error(err),
					)
				}
			}
		}

		q := nextStepQuestion(settings)
		if _, err := e.sender.Send(ctx, dispatch.KindText, creds, conv, dispatch.Payload{Text: MenuText(q)}); err != nil {
			return err
		}

		next := StepNextStep
		conv.BotStep = &next
		if _, err := e.repos.Conversations.Update(ctx, conv); err != nil {
			return fmt.Errorf("bot: atualizar conversa: %w", err)
		}
		return nil
	}
}

func (e *Engine) sendMaterial(ctx context.Context, creds provider.Credentials, conv model.Conversation, m model.Material) error {
	p := dispatch.Payload{MediaURL: m.URL, Caption: m.Caption, FileName: m.Caption}
	switch m.Type {
	case "image":
		_, err := e.sender.Send(ctx, dispatch.KindImage, creds, conv, p)
		return err
	case "video":
		_, err := e.sender.Send(ctx, dispatch.KindVideo, creds, conv, p)
		return err
	case "audio":
		_, err := e.sender.Send(ctx, dispatch.KindAudio, creds, conv, p)
		return err
	case "document":
		_, err := e.sender.Send(ctx, dispatch.KindDocument, creds, conv, p)
		return err
	default:
		_, err := e.sender.Send(ctx, dispatch.KindText, creds, conv, dispatch.Payload{Text: m.URL})
		return err
	}
}
