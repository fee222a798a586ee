package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/KatnessChen/MaraMap-Backend/internal/core"
	"github.com/KatnessChen/MaraMap-Backend/internal/metrics"
	"github.com/KatnessChen/MaraMap-Backend/internal/requestctx"
)

// IngestService records submissions exactly once per source id.
//
// It does a lookup followed by an insert and takes no locks. Two concurrent
// submissions of the same source id are resolved by the store's uniqueness
// constraint: the loser gets a persistence failure and a retry of the same
// request answers AlreadyExists.
type IngestService struct {
	store   core.PostStore
	auditor core.Auditor
}

func NewIngestService(store core.PostStore, auditor core.Auditor) *IngestService {
	return &IngestService{
		store:   store,
		auditor: auditor,
	}
}

func (s *IngestService) Ingest(
	ctx context.Context,
	req core.IngestionRequest,
	principal *core.Principal,
) (result *core.IngestionResult, err error) {
	logger := log.Ctx(ctx)
	start := time.Now()

	auditEntry := core.AuditEntry{
		ID:        requestctx.CorrelationID(ctx),
		Time:      start,
		Action:    ActionIngest,
		Principal: principal,
		SourceID:  req.SourceID,
	}
	defer func() {
		outcome := failureOutcome(err)
		if err == nil {
			outcome = string(result.Outcome)
			auditEntry.Success = true
			auditEntry.Outcome = result.Outcome
			auditEntry.PostID = result.PostID
		} else {
			auditEntry.Error = err.Error()
		}
		metrics.RecordIngest(outcome, time.Since(start))

		if auditErr := s.auditor.Log(auditEntry); auditErr != nil {
			logger.Error().Err(auditErr).Msg("failed to write audit log entry for ingestion")
		}
	}()

	if principal == nil {
		return nil, httpError(http.StatusUnauthorized, errors.New("ingestion requires an authenticated principal"))
	}

	existing, err := s.store.FindBySourceID(ctx, req.SourceID)
	if err != nil {
		logger.Error().Err(err).Str("source_id", req.SourceID).Msg("looking up post failed")
		return nil, persistenceFailure(OpFind, err)
	}
	if existing != nil {
		logger.Info().
			Str("source_id", req.SourceID).
			Str("post_id", existing.ID).
			Msg("post already ingested")
		return &core.IngestionResult{Outcome: core.OutcomeAlreadyExists, PostID: existing.ID}, nil
	}

	images := req.RawImages
	if images == nil {
		images = []string{}
	}
	post := &core.Post{
		SourceID: req.SourceID,
		RawText:  req.RawText,
		UserID:   principal.Subject,
		Status:   core.PostStatusPending,
		Meta: core.PostMeta{
			OriginalURL: req.OriginalURL,
			RawImages:   images,
		},
	}

	id, err := s.store.Insert(ctx, post)
	if err != nil {
		if errors.Is(err, core.ErrDuplicateSourceID) {
			// lost a race against a concurrent submission of the same source id
			logger.Warn().Str("source_id", req.SourceID).Msg("concurrent ingestion of the same source id")
		} else {
			logger.Error().Err(err).Str("source_id", req.SourceID).Msg("inserting post failed")
		}
		return nil, persistenceFailure(OpInsert, err)
	}
	if id == "" {
		return nil, persistenceFailure(OpInsert, fmt.Errorf("store returned no id for source id %q", req.SourceID))
	}

	logger.Info().
		Str("source_id", req.SourceID).
		Str("post_id", id).
		Msg("post ingested")
	return &core.IngestionResult{Outcome: core.OutcomeCreated, PostID: id}, nil
}

// failureOutcome is the metric label of a failed ingestion.
func failureOutcome(err error) string {
	var ingestErr *IngestError
	if errors.As(err, &ingestErr) {
		return string(ingestErr.Kind)
	}
	return OutcomeUnauthenticated
}
