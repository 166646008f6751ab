package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/zapfesta/zapfesta/internal/storage"
	"github.com/zapfesta/zapfesta/internal/storage/model"
)

type botSettingsRepo struct {
	db *DB
}

func NewBotSettingsRepository(db *DB) *botSettingsRepo {
	return &botSettingsRepo{db: db}
}

const botSettingsColumns = `id, instance_id, enabled, test_mode, test_number, welcome_message,
	completion_message, transfer_message, qualified_lead_message, next_step_question,
	next_step_visit_reply, next_step_doubts_reply, next_step_analyze_reply, auto_send_materials,
	materials, followup_enabled, followup_delay_hours, followup_template,
	followup2_enabled, followup2_delay_hours, followup2_template, updated_at`

func scanBotSettings(row rowScanner) (model.BotSettings, error) {
	var s model.BotSettings
	var testNumber, materials sql.NullString
	var updatedAt string

	err := row.Scan(
		&s.ID, &s.InstanceID, &s.Enabled, &s.TestMode, &testNumber, &s.WelcomeMessage,
		&s.CompletionMessage, &s.TransferMessage, &s.QualifiedLeadMessage, &s.NextStepQuestion,
		&s.NextStepVisitReply, &s.NextStepDoubtsReply, &s.NextStepAnalyzeReply, &s.AutoSendMaterials,
		&materials, &s.FollowupEnabled, &s.FollowupDelayHours, &s.FollowupTemplate,
		&s.Followup2Enabled, &s.Followup2DelayHours, &s.Followup2Template, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.BotSettings{}, storage.ErrNotFound
	}
	if err != nil {
		return model.BotSettings{}, err
	}

	s.TestNumber = testNumber.String
	s.UpdatedAt = parseTime(updatedAt)
	if materials.Valid && materials.String != "" {
		if err := json.Unmarshal([]byte(materials.String), &s.Materials); err != nil {
			return model.BotSettings{}, err
		}
	}
	return s, nil
}

func (r *botSettingsRepo) GetByInstance(ctx context.Context, instanceID string) (model.BotSettings, error) {
	query := `SELECT ` + botSettingsColumns + ` FROM bot_settings WHERE instance_id = ?`
	return scanBotSettings(r.db.Conn.QueryRowContext(ctx, query, instanceID))
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
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (instance_id) DO UPDATE SET
			enabled = excluded.enabled, test_mode = excluded.test_mode, test_number = excluded.test_number,
			welcome_message = excluded.welcome_message, completion_message = excluded.completion_message,
			transfer_message = excluded.transfer_message, qualified_lead_message = excluded.qualified_lead_message,
			next_step_question = excluded.next_step_question, next_step_visit_reply = excluded.next_step_visit_reply,
			next_step_doubts_reply = excluded.next_step_doubts_reply, next_step_analyze_reply = excluded.next_step_analyze_reply,
			auto_send_materials = excluded.auto_send_materials, materials = excluded.materials,
			followup_enabled = excluded.followup_enabled, followup_delay_hours = excluded.followup_delay_hours,
			followup_template = excluded.followup_template, followup2_enabled = excluded.followup2_enabled,
			followup2_delay_hours = excluded.followup2_delay_hours, followup2_template = excluded.followup2_template,
			updated_at = excluded.updated_at
	`
	_, err = r.db.Conn.ExecContext(ctx, query,
		s.ID, s.InstanceID, s.Enabled, s.TestMode, nsv(s.TestNumber), s.WelcomeMessage,
		s.CompletionMessage, s.TransferMessage, s.QualifiedLeadMessage, s.NextStepQuestion,
		s.NextStepVisitReply, s.NextStepDoubtsReply, s.NextStepAnalyzeReply, s.AutoSendMaterials,
		string(materials), s.FollowupEnabled, s.FollowupDelayHours, s.FollowupTemplate,
		s.Followup2Enabled, s.Followup2DelayHours, s.Followup2Template, fmtTime(s.UpdatedAt),
	)
	if err != nil {
		return model.BotSettings{}, err
	}
	return s, nil
}

type botQuestionRepo struct {
	db *DB
}

func NewBotQuestionRepository(db *DB) *botQuestionRepo {
	return &botQuestionRepo{db: db}
}

func (r *botQuestionRepo) ListActiveByInstance(ctx context.Context, instanceID string) ([]model.BotQuestion, error) {
	query := `
		SELECT id, instance_id, step_key, question, confirmation, input_kind, sort_order, active
		FROM bot_questions
		WHERE instance_id = ? AND active = 1
		ORDER BY sort_order ASC
	`

	rows, err := r.db.Conn.QueryContext(ctx, query, instanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.BotQuestion
	for rows.Next() {
		var q model.BotQuestion
		var confirmation sql.NullString
		if err := rows.Scan(&q.ID, &q.InstanceID, &q.StepKey, &q.Question, &confirmation, &q.InputKind, &q.SortOrder, &q.Active); err != nil {
			return nil, err
		}
		q.Confirmation = confirmation.String
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
		WHERE question_id = ?
		ORDER BY position ASC
	`

	rows, err := r.db.Conn.QueryContext(ctx, query, questionID)
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

	tx, err := r.db.Conn.BeginTx(ctx, nil)
	if err != nil {
		return model.BotQuestion{}, err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO bot_questions (id, instance_id, step_key, question, confirmation, input_kind, sort_order, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			step_key = excluded.step_key, question = excluded.question, confirmation = excluded.confirmation,
			input_kind = excluded.input_kind, sort_order = excluded.sort_order, active = excluded.active
	`
	if _, err := tx.ExecContext(ctx, query,
		q.ID, q.InstanceID, q.StepKey, q.Question, nsv(q.Confirmation), string(q.InputKind), q.SortOrder, q.Active,
	); err != nil {
		return model.BotQuestion{}, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM bot_question_options WHERE question_id = ?`, q.ID); err != nil {
		return model.BotQuestion{}, err
	}

	for i := range q.Options {
		opt := &q.Options[i]
		if opt.ID == "" {
			opt.ID = uuid.New().String()
		}
		opt.QuestionID = q.ID
		opt.Position = i
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO bot_question_options (id, question_id, code, label, position) VALUES (?, ?, ?, ?, ?)`,
			opt.ID, opt.QuestionID, opt.Code, opt.Label, opt.Position,
		); err != nil {
			return model.BotQuestion{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return model.BotQuestion{}, err
	}
	return q, nil
}

func (r *botQuestionRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.Conn.ExecContext(ctx, `DELETE FROM bot_questions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
