package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/zapfesta/zapfesta/internal/storage"
	"github.com/zapfesta/zapfesta/internal/storage/model"
)

type botSettingsRepo struct {
	db *DB
}

func NewBotSettingsRepository(db *DB) *botSettingsRepo {
	return &botSettingsRepo{db: db}
}

const botSettingsColumns = `id, instance_id, enabled, test_mode, COALESCE(test_number, ''),
	welcome_message, completion_message, transfer_message, qualified_lead_message,
	next_step_question, next_step_visit_reply, next_step_doubts_reply, next_step_analyze_reply,
	auto_send_materials, materials, followup_enabled, followup_delay_hours, followup_template,
	followup2_enabled, followup2_delay_hours, followup2_template, updated_at`

func scanBotSettings(row pgx.Row) (model.BotSettings, error) {
	var s model.BotSettings
	var materials []byte
	err := row.Scan(
		&s.ID, &s.InstanceID, &s.Enabled, &s.TestMode, &s.TestNumber,
		&s.WelcomeMessage, &s.CompletionMessage, &s.TransferMessage, &s.QualifiedLeadMessage,
		&s.NextStepQuestion, &s.NextStepVisitReply, &s.NextStepDoubtsReply, &s.NextStepAnalyzeReply,
		&s.AutoSendMaterials, &materials, &s.FollowupEnabled, &s.FollowupDelayHours, &s.FollowupTemplate,
		&s.Followup2Enabled, &s.Followup2DelayHours, &s.Followup2Template, &s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.BotSettings{}, storage.ErrNotFound
	}
	if err != nil {
		return model.BotSettings{}, err
	}
	if len(materials) > 0 {
		if err := json.Unmarshal(materials, &s.Materials); err != nil {
			return model.BotSettings{}, err
		}
	}
	return s, nil
}

func (r *botSettingsRepo) GetByInstance(ctx context.Context, instanceID string) (model.BotSettings, error) {
	query := `SELECT ` + botSettingsColumns + ` FROM bot_settings WHERE instance_id = $1`
	return scanBotSettings(r.db.Pool.QueryRow(ctx, query, instanceID))
}

func (r *botSettingsRepo) Save(ctx context.Context, s model.BotSettings) (model.BotSettings, error) {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	s.UpdatedAt = time.Now()

	materials, err := json.Marshal(s.Materials)
	if err != nil {
		return model.BotSettings{}, err
	}

	query := `
		INSERT INTO bot_settings (
			id, instance_id, enabled, test_mode, test_number, welcome_message, completion_message,
			transfer_message, qualified_lead_message, next_step_question, next_step_visit_reply,
			next_step_doubts_reply, next_step_analyze_reply, auto_send_materials, materials,
			followup_enabled, followup_delay_hours, followup_template,
			followup2_enabled, followup2_delay_hours, followup2_template, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		ON CONFLICT (instance_id) DO UPDATE SET
			enabled = EXCLUDED.enabled, test_mode = EXCLUDED.test_mode, test_number = EXCLUDED.test_number,
			welcome_message = EXCLUDED.welcome_message, completion_message = EXCLUDED.completion_message,
			transfer_message = EXCLUDED.transfer_message, qualified_lead_message = EXCLUDED.qualified_lead_message,
			next_step_question = EXCLUDED.next_step_question, next_step_visit_reply = EXCLUDED.next_step_visit_reply,
			next_step_doubts_reply = EXCLUDED.next_step_doubts_reply, next_step_analyze_reply = EXCLUDED.next_step_analyze_reply,
			auto_send_materials = EXCLUDED.auto_send_materials, materials = EXCLUDED.materials,
			followup_enabled = EXCLUDED.followup_enabled, followup_delay_hours = EXCLUDED.followup_delay_hours,
			followup_template = EXCLUDED.followup_template, followup2_enabled = EXCLUDED.followup2_enabled,
			followup2_delay_hours = EXCLUDED.followup2_delay_hours, followup2_template = EXCLUDED.followup2_template,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + botSettingsColumns

	return scanBotSettings(r.db.Pool.QueryRow(ctx, query,
		s.ID, s.InstanceID, s.Enabled, s.TestMode, nullIfEmpty(s.TestNumber),
		s.WelcomeMessage, s.CompletionMessage, s.TransferMessage, s.QualifiedLeadMessage,
		s.NextStepQuestion, s.NextStepVisitReply, s.NextStepDoubtsReply, s.NextStepAnalyzeReply,
		s.AutoSendMaterials, materials, s.FollowupEnabled, s.FollowupDelayHours, s.FollowupTemplate,
		s.Followup2Enabled, s.Followup2DelayHours, s.Followup2Template, s.UpdatedAt,
	))
}

type botQuestionRepo struct {
	db *DB
}

func NewBotQuestionRepository(db *DB) *botQuestionRepo {
	return &botQuestionRepo{db: db}
}

func (r *botQuestionRepo) ListActiveByInstance(ctx context.Context, instanceID string) ([]model.BotQuestion, error) {
	query := `
		SELECT id, instance_id, step_key, question, COALESCE(confirmation, ''), input_kind, sort_order, active
		FROM bot_questions
		WHERE instance_id = $1 AND active = TRUE
		ORDER BY sort_order ASC
	`

	rows, err := r.db.Pool.Query(ctx, query, instanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.BotQuestion
	for rows.Next() {
		var q model.BotQuestion
		if err := rows.Scan(&q.ID, &q.InstanceID, &q.StepKey, &q.Question, &q.Confirmation, &q.InputKind, &q.SortOrder, &q.Active); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range questions {
		opts, err := r.listOptions(ctx, questions[i].ID)
		if err != nil {
			return nil, err
		}
		questions[i].Options = opts
	}

	return questions, nil
}

func (r *botQuestionRepo) listOptions(ctx context.Context, questionID string) ([]model.BotQuestionOption, error) {
	query := `
		SELECT id, question_id, code, label, position
		FROM bot_question_options
		WHERE question_id = $1
		ORDER BY position ASC
	`

	rows, err := r.db.Pool.Query(ctx, query, questionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var opts []model.BotQuestionOption
	for rows.Next() {
		var o model.BotQuestionOption
		if err := rows.Scan(&o.ID, &o.QuestionID, &o.Code, &o.Label, &o.Position); err != nil {
			return nil, err
		}
		opts = append(opts, o)
	}
	return opts, rows.Err()
}

func (r *botQuestionRepo) Save(ctx context.Context, q model.BotQuestion) (model.BotQuestion, error) {
	if q.ID == "" {
		q.ID = uuid.New().String()
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return model.BotQuestion{}, err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO bot_questions (id, instance_id, step_key, question, confirmation, input_kind, sort_order, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			step_key = EXCLUDED.step_key, question = EXCLUDED.question, confirmation = EXCLUDED.confirmation,
			input_kind = EXCLUDED.input_kind, sort_order = EXCLUDED.sort_order, active = EXCLUDED.active
	`
	if _, err := tx.Exec(ctx, query,
		q.ID, q.InstanceID, q.StepKey, q.Question, nullIfEmpty(q.Confirmation), string(q.InputKind), q.SortOrder, q.Active,
	); err != nil {
		return model.BotQuestion{}, err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM bot_question_options WHERE question_id = $1`, q.ID); err != nil {
		return model.BotQuestion{}, err
	}

	for i := range q.Options {
		opt := &q.Options[i]
		if opt.ID == "" {
			opt.ID = uuid.New().String()
		}
		opt.QuestionID = q.ID
		opt.Position = i
		if _, err := tx.Exec(ctx,
			`INSERT INTO bot_question_options (id, question_id, code, label, position) VALUES ($1, $2, $3, $4, $5)`,
			opt.ID, opt.QuestionID, opt.Code, opt.Label, opt.Position,
		); err != nil {
			return model.BotQuestion{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return model.BotQuestion{}, err
	}
	return q, nil
}

func (r *botQuestionRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM bot_questions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}
