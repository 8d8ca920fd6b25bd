package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"lotkeeper/internal/core/actor"
	"lotkeeper/internal/core/id"
	"lotkeeper/internal/domain/audit"
)

// CompressionAlgo specifies the compression algorithm used.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// AuditEntry represents a single audit log entry.
type AuditEntry struct {
	ID                id.ID           `db:"id"`
	EntityType        string          `db:"entity_type"`
	EntityID          id.ID           `db:"entity_id"`
	Action            audit.Action    `db:"action"`
	ActorID           string          `db:"actor_id"`
	Changes           json.RawMessage `db:"changes"`
	ChangesCompressed []byte          `db:"changes_compressed"`
	CompressionAlgo   CompressionAlgo `db:"compression_algo"`
	CreatedAt         time.Time       `db:"created_at"`
}

// AuditService records entity change snapshots to sys_audit.
// Large payloads are zstd-compressed. Implements audit.Recorder.
type AuditService struct {
	txManager         *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int // bytes, default 10KB
}

// NewAuditService creates a new audit service.
func NewAuditService(txManager *TxManager) (*AuditService, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &AuditService{
		txManager:         txManager,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: 10 * 1024, // 10KB
	}, nil
}

// Record implements audit.Recorder.
func (s *AuditService) Record(ctx context.Context, entityType string, entityID id.ID, action audit.Action, changes map[string]any) error {
	changesJSON, err := json.Marshal(changes)
	if err != nil {
		return fmt.Errorf("marshal changes: %w", err)
	}

	return s.Log(ctx, AuditEntry{
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Changes:    changesJSON,
	})
}

// Log records an audit entry.
func (s *AuditService) Log(ctx context.Context, entry AuditEntry) error {
	if entry.ActorID == "" {
		entry.ActorID = actor.GetID(ctx)
	}
	if id.IsNil(entry.ID) {
		entry.ID = id.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	// Compress large changes
	entry.CompressionAlgo = CompressionNone
	if len(entry.Changes) > s.compressThreshold {
		entry.ChangesCompressed = s.encoder.EncodeAll(entry.Changes, nil)
		entry.Changes = nil
		entry.CompressionAlgo = CompressionZstd
	}

	sql := `
		INSERT INTO sys_audit (
			id, entity_type, entity_id, action, actor_id,
			changes, changes_compressed, compression_algo, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	querier := s.txManager.GetQuerier(ctx)
	_, err := querier.Exec(ctx, sql,
		entry.ID, entry.EntityType, entry.EntityID, entry.Action, entry.ActorID,
		entry.Changes, entry.ChangesCompressed, entry.CompressionAlgo,
		entry.CreatedAt,
	)

	return err
}

// GetEntityHistory retrieves audit history for an entity, newest first.
func (s *AuditService) GetEntityHistory(ctx context.Context, entityType string, entityID id.ID, limit int) ([]AuditEntry, error) {
	sql := `
		SELECT id, entity_type, entity_id, action, actor_id,
		       changes, changes_compressed, compression_algo, created_at
		FROM sys_audit
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`

	rows, err := s.txManager.GetQuerier(ctx).Query(ctx, sql, entityType, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		err := rows.Scan(
			&e.ID, &e.EntityType, &e.EntityID, &e.Action, &e.ActorID,
			&e.Changes, &e.ChangesCompressed, &e.CompressionAlgo, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}

		if e.CompressionAlgo == CompressionZstd && len(e.ChangesCompressed) > 0 {
			decompressed, err := s.decoder.DecodeAll(e.ChangesCompressed, nil)
			if err != nil {
				return nil, fmt.Errorf("decompress changes: %w", err)
			}
			e.Changes = decompressed
			e.ChangesCompressed = nil
		}

		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Ensure interface compliance.
var _ audit.Recorder = (*AuditService)(nil)
