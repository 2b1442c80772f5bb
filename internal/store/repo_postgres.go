package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// Postgres repositories over database/sql (pgx stdlib driver).
// See schema.sql for the expected tables and indexes.

type PostgresMessageRepo struct {
	DB *sql.DB
}

func NewPostgresMessageRepo(db *sql.DB) *PostgresMessageRepo { return &PostgresMessageRepo{DB: db} }

const messageColumns = `
id, message_id, wa_id, from_number, contact_name, message_type, message_text,
audio_id, audio_url, audio_mime_type, is_voice,
image_id, image_url, image_mime_type, image_caption,
video_id, video_url, video_mime_type, video_caption,
document_id, document_url, document_filename, document_mime_type,
latitude, longitude,
sticker_id, sticker_url, sticker_mime_type, is_animated,
contacts_data, timestamp, phone_number_id, display_phone_number,
raw_payload, processed, created_at, updated_at`

func (r *PostgresMessageRepo) Upsert(ctx context.Context, m *InboundMessage) (bool, error) {
	const q = `
INSERT INTO inbound_messages (` + messageColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7,
        $8, $9, $10, $11,
        $12, $13, $14, $15,
        $16, $17, $18, $19,
        $20, $21, $22, $23,
        $24, $25,
        $26, $27, $28, $29,
        $30, $31, $32, $33,
        $34, $35, $36, $37)
ON CONFLICT (message_id) DO UPDATE SET
  wa_id = EXCLUDED.wa_id,
  from_number = EXCLUDED.from_number,
  contact_name = EXCLUDED.contact_name,
  message_type = EXCLUDED.message_type,
  message_text = EXCLUDED.message_text,
  audio_id = EXCLUDED.audio_id,
  audio_url = EXCLUDED.audio_url,
  audio_mime_type = EXCLUDED.audio_mime_type,
  is_voice = EXCLUDED.is_voice,
  image_id = EXCLUDED.image_id,
  image_url = EXCLUDED.image_url,
  image_mime_type = EXCLUDED.image_mime_type,
  image_caption = EXCLUDED.image_caption,
  video_id = EXCLUDED.video_id,
  video_url = EXCLUDED.video_url,
  video_mime_type = EXCLUDED.video_mime_type,
  video_caption = EXCLUDED.video_caption,
  document_id = EXCLUDED.document_id,
  document_url = EXCLUDED.document_url,
  document_filename = EXCLUDED.document_filename,
  document_mime_type = EXCLUDED.document_mime_type,
  latitude = EXCLUDED.latitude,
  longitude = EXCLUDED.longitude,
  sticker_id = EXCLUDED.sticker_id,
  sticker_url = EXCLUDED.sticker_url,
  sticker_mime_type = EXCLUDED.sticker_mime_type,
  is_animated = EXCLUDED.is_animated,
  contacts_data = EXCLUDED.contacts_data,
  timestamp = EXCLUDED.timestamp,
  phone_number_id = EXCLUDED.phone_number_id,
  display_phone_number = EXCLUDED.display_phone_number,
  raw_payload = EXCLUDED.raw_payload,
  updated_at = EXCLUDED.updated_at
RETURNING (xmax = 0)`

	var created bool
	err := r.DB.QueryRowContext(ctx, q,
		m.ID, m.MessageID, m.WaID, m.FromNumber, nullStr(m.ContactName), m.MessageType, nullStr(m.MessageText),
		nullStr(m.AudioID), nullStr(m.AudioURL), nullStr(m.AudioMimeType), m.IsVoice,
		nullStr(m.ImageID), nullStr(m.ImageURL), nullStr(m.ImageMimeType), nullStr(m.ImageCaption),
		nullStr(m.VideoID), nullStr(m.VideoURL), nullStr(m.VideoMimeType), nullStr(m.VideoCaption),
		nullStr(m.DocumentID), nullStr(m.DocumentURL), nullStr(m.DocumentFilename), nullStr(m.DocumentMimeType),
		m.Latitude, m.Longitude,
		nullStr(m.StickerID), nullStr(m.StickerURL), nullStr(m.StickerMimeType), m.IsAnimated,
		nullJSON(m.ContactsData), m.Timestamp, m.PhoneNumberID, m.DisplayPhoneNumber,
		[]byte(m.RawPayload), m.Processed, m.CreatedAt, m.UpdatedAt,
	).Scan(&created)
	if err != nil {
		return false, err
	}
	return created, nil
}

func (r *PostgresMessageRepo) List(ctx context.Context, f MessageFilter) ([]InboundMessage, error) {
	// Filters are optional; NULL arguments disable the corresponding clause.
	const q = `
SELECT ` + messageColumns + `
FROM inbound_messages
WHERE ($1::text IS NULL OR wa_id = $1)
  AND ($2::text IS NULL OR message_type = $2)
  AND ($3::boolean IS NULL OR processed = $3)
ORDER BY created_at DESC
LIMIT $4`

	rows, err := r.DB.QueryContext(ctx, q,
		nullStr(f.WaID), nullStr(f.MessageType), nullBool(f.Processed), clampLimit(f.Limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []InboundMessage
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *PostgresMessageRepo) MarkProcessed(ctx context.Context, id string, at time.Time) error {
	const q = `UPDATE inbound_messages SET processed = TRUE, updated_at = $2 WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, q, id, at)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanMessage(rows *sql.Rows) (InboundMessage, error) {
	var m InboundMessage
	var contactName, messageText sql.NullString
	var audioID, audioURL, audioMime sql.NullString
	var imageID, imageURL, imageMime, imageCaption sql.NullString
	var videoID, videoURL, videoMime, videoCaption sql.NullString
	var docID, docURL, docFilename, docMime sql.NullString
	var stickerID, stickerURL, stickerMime sql.NullString
	var latitude, longitude sql.NullFloat64
	var contactsData, rawPayload []byte

	err := rows.Scan(
		&m.ID, &m.MessageID, &m.WaID, &m.FromNumber, &contactName, &m.MessageType, &messageText,
		&audioID, &audioURL, &audioMime, &m.IsVoice,
		&imageID, &imageURL, &imageMime, &imageCaption,
		&videoID, &videoURL, &videoMime, &videoCaption,
		&docID, &docURL, &docFilename, &docMime,
		&latitude, &longitude,
		&stickerID, &stickerURL, &stickerMime, &m.IsAnimated,
		&contactsData, &m.Timestamp, &m.PhoneNumberID, &m.DisplayPhoneNumber,
		&rawPayload, &m.Processed, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return InboundMessage{}, err
	}

	m.ContactName = contactName.String
	m.MessageText = messageText.String
	m.AudioID, m.AudioURL, m.AudioMimeType = audioID.String, audioURL.String, audioMime.String
	m.ImageID, m.ImageURL, m.ImageMimeType, m.ImageCaption = imageID.String, imageURL.String, imageMime.String, imageCaption.String
	m.VideoID, m.VideoURL, m.VideoMimeType, m.VideoCaption = videoID.String, videoURL.String, videoMime.String, videoCaption.String
	m.DocumentID, m.DocumentURL, m.DocumentFilename, m.DocumentMimeType = docID.String, docURL.String, docFilename.String, docMime.String
	m.StickerID, m.StickerURL, m.StickerMimeType = stickerID.String, stickerURL.String, stickerMime.String
	if latitude.Valid {
		m.Latitude = &latitude.Float64
	}
	if longitude.Valid {
		m.Longitude = &longitude.Float64
	}
	if contactsData != nil {
		m.ContactsData = json.RawMessage(contactsData)
	}
	m.RawPayload = json.RawMessage(rawPayload)
	return m, nil
}

type PostgresCallRepo struct {
	DB *sql.DB
}

func NewPostgresCallRepo(db *sql.DB) *PostgresCallRepo { return &PostgresCallRepo{DB: db} }

const callColumns = `
id, call_id, from_number, to_number, wa_id, contact_name,
event, direction, status, timestamp, start_time, end_time, duration,
session_sdp, session_sdp_type, phone_number_id, display_phone_number,
raw_payload, created_at`

func (r *PostgresCallRepo) Append(ctx context.Context, e *CallEvent) error {
	const q = `
INSERT INTO call_events (` + callColumns + `)
VALUES ($1, $2, $3, $4, $5, $6,
        $7, $8, $9, $10, $11, $12, $13,
        $14, $15, $16, $17,
        $18, $19)`

	_, err := r.DB.ExecContext(ctx, q,
		e.ID, e.CallID, e.FromNumber, e.ToNumber, e.WaID, nullStr(e.ContactName),
		string(e.Event), string(e.Direction), nullStr(string(e.Status)), e.Timestamp,
		nullStr(e.StartTime), nullStr(e.EndTime), e.DurationSeconds,
		nullStr(e.SessionSDP), nullStr(e.SessionSDPType), e.PhoneNumberID, e.DisplayPhoneNumber,
		[]byte(e.RawPayload), e.CreatedAt,
	)
	return err
}

func (r *PostgresCallRepo) List(ctx context.Context, limit int) ([]CallEvent, error) {
	const q = `
SELECT ` + callColumns + `
FROM call_events
ORDER BY created_at DESC
LIMIT $1`

	rows, err := r.DB.QueryContext(ctx, q, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CallEvent
	for rows.Next() {
		var e CallEvent
		var event, direction string
		var contactName, status, startTime, endTime, sdp, sdpType sql.NullString
		var duration sql.NullInt64
		var rawPayload []byte
		if err := rows.Scan(
			&e.ID, &e.CallID, &e.FromNumber, &e.ToNumber, &e.WaID, &contactName,
			&event, &direction, &status, &e.Timestamp, &startTime, &endTime, &duration,
			&sdp, &sdpType, &e.PhoneNumberID, &e.DisplayPhoneNumber,
			&rawPayload, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		e.Event = CallEventType(event)
		e.Direction = CallDirection(direction)
		e.ContactName = contactName.String
		e.Status = CallStatus(status.String)
		if duration.Valid {
			d := int(duration.Int64)
			e.DurationSeconds = &d
		}
		e.StartTime, e.EndTime = startTime.String, endTime.String
		e.SessionSDP, e.SessionSDPType = sdp.String, sdpType.String
		e.RawPayload = json.RawMessage(rawPayload)
		out = append(out, e)
	}
	return out, rows.Err()
}

type PostgresStatusRepo struct {
	DB *sql.DB
}

func NewPostgresStatusRepo(db *sql.DB) *PostgresStatusRepo { return &PostgresStatusRepo{DB: db} }

const statusColumns = `
id, message_id, status, recipient_id,
conversation_id, conversation_expiration_timestamp, conversation_origin_type,
is_billable, pricing_model, pricing_category, pricing_type,
timestamp, phone_number_id, display_phone_number, raw_payload, created_at`

func (r *PostgresStatusRepo) Append(ctx context.Context, e *StatusEvent) error {
	const q = `
INSERT INTO status_events (` + statusColumns + `)
VALUES ($1, $2, $3, $4,
        $5, $6, $7,
        $8, $9, $10, $11,
        $12, $13, $14, $15, $16)`

	_, err := r.DB.ExecContext(ctx, q,
		e.ID, e.MessageID, string(e.Status), e.RecipientID,
		nullStr(e.ConversationID), nullStr(e.ConversationExpiration), nullStr(e.ConversationOriginType),
		e.IsBillable, nullStr(e.PricingModel), nullStr(e.PricingCategory), nullStr(e.PricingType),
		e.Timestamp, e.PhoneNumberID, e.DisplayPhoneNumber, []byte(e.RawPayload), e.CreatedAt,
	)
	return err
}

func (r *PostgresStatusRepo) List(ctx context.Context, limit int) ([]StatusEvent, error) {
	const q = `
SELECT ` + statusColumns + `
FROM status_events
ORDER BY created_at DESC
LIMIT $1`

	rows, err := r.DB.QueryContext(ctx, q, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StatusEvent
	for rows.Next() {
		var e StatusEvent
		var status string
		var convID, convExp, convOrigin, pModel, pCategory, pType sql.NullString
		var rawPayload []byte
		if err := rows.Scan(
			&e.ID, &e.MessageID, &status, &e.RecipientID,
			&convID, &convExp, &convOrigin,
			&e.IsBillable, &pModel, &pCategory, &pType,
			&e.Timestamp, &e.PhoneNumberID, &e.DisplayPhoneNumber, &rawPayload, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		e.Status = DeliveryStatus(status)
		e.ConversationID, e.ConversationExpiration, e.ConversationOriginType = convID.String, convExp.String, convOrigin.String
		e.PricingModel, e.PricingCategory, e.PricingType = pModel.String, pCategory.String, pType.String
		e.RawPayload = json.RawMessage(rawPayload)
		out = append(out, e)
	}
	return out, rows.Err()
}

type PostgresOutgoingRepo struct {
	DB *sql.DB
}

func NewPostgresOutgoingRepo(db *sql.DB) *PostgresOutgoingRepo { return &PostgresOutgoingRepo{DB: db} }

const outgoingColumns = `
id, message_id, to_number, message_type, message_text,
status, error_message, api_response, sent_at, created_at, updated_at`

func (r *PostgresOutgoingRepo) Create(ctx context.Context, m *OutgoingMessage) error {
	const q = `
INSERT INTO outgoing_messages (` + outgoingColumns + `)
VALUES ($1, $2, $3, $4, $5,
        $6, $7, $8, $9, $10, $11)`

	_, err := r.DB.ExecContext(ctx, q,
		m.ID, nullStr(m.MessageID), m.ToNumber, m.MessageType, m.MessageText,
		string(m.Status), nullStr(m.ErrorMessage), nullJSON(m.APIResponse), m.SentAt, m.CreatedAt, m.UpdatedAt,
	)
	return err
}

func (r *PostgresOutgoingRepo) MarkSent(ctx context.Context, id, messageID string, response json.RawMessage, at time.Time) error {
	const q = `
UPDATE outgoing_messages
SET message_id = $2, status = $3, api_response = $4, sent_at = $5, updated_at = $5
WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, q, id, messageID, string(OutgoingStatusSent), nullJSON(response), at)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *PostgresOutgoingRepo) MarkFailed(ctx context.Context, id, errorMessage string, response json.RawMessage, at time.Time) error {
	const q = `
UPDATE outgoing_messages
SET status = $2, error_message = $3, api_response = $4, updated_at = $5
WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, q, id, string(OutgoingStatusFailed), errorMessage, nullJSON(response), at)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *PostgresOutgoingRepo) List(ctx context.Context, limit int) ([]OutgoingMessage, error) {
	const q = `
SELECT ` + outgoingColumns + `
FROM outgoing_messages
ORDER BY created_at DESC
LIMIT $1`

	rows, err := r.DB.QueryContext(ctx, q, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OutgoingMessage
	for rows.Next() {
		var m OutgoingMessage
		var status string
		var messageID, errorMessage sql.NullString
		var sentAt sql.NullTime
		var apiResponse []byte
		if err := rows.Scan(
			&m.ID, &messageID, &m.ToNumber, &m.MessageType, &m.MessageText,
			&status, &errorMessage, &apiResponse, &sentAt, &m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, err
		}
		m.Status = OutgoingStatus(status)
		if sentAt.Valid {
			t := sentAt.Time
			m.SentAt = &t
		}
		m.MessageID = messageID.String
		m.ErrorMessage = errorMessage.String
		if apiResponse != nil {
			m.APIResponse = json.RawMessage(apiResponse)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
