package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ki-studio/internal/finetune"
)

const (
	defaultTriggerWord  = "TOK"
	defaultMode         = "general"
	defaultIterations   = 300
	defaultLearningRate = 0.0001
	defaultPriority     = "quality"
	defaultFinetuneType = "full"
	defaultLoraRank     = 32

	detailsConcurrency = 5
)

var ErrInvalidFinetune = errors.New("invalid finetune request")

// FinetuneAPI es el subconjunto del cliente BFL que usa el servicio.
type FinetuneAPI interface {
	Create(ctx context.Context, req finetune.Request) (finetune.Created, error)
	ListIDs(ctx context.Context) ([]string, error)
	Details(ctx context.Context, id string) (json.RawMessage, error)
	Status(ctx context.Context, id string) (finetune.Status, error)
	Delete(ctx context.Context, id string) error
}

type FinetuneService struct {
	logger *zap.Logger
	api    FinetuneAPI
}

func NewFinetuneService(logger *zap.Logger, api FinetuneAPI) *FinetuneService {
	return &FinetuneService{logger: logger, api: api}
}

// List trae los ids y luego el detalle de cada uno en paralelo, preservando el orden.
func (s *FinetuneService) List(ctx context.Context) ([]json.RawMessage, error) {
	ids, err := s.api.ListIDs(ctx)
	if err != nil {
		return nil, err
	}

	details := make([]json.RawMessage, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(detailsConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			d, err := s.api.Details(gctx, id)
			if err != nil {
				return fmt.Errorf("finetune details %s: %w", id, err)
			}
			details[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return details, nil
}

func (s *FinetuneService) Create(ctx context.Context, req finetune.Request) (finetune.Created, error) {
	req = applyFinetuneDefaults(req)
	if err := validateFinetune(req); err != nil {
		return finetune.Created{}, err
	}
	created, err := s.api.Create(ctx, req)
	if err != nil {
		return finetune.Created{}, err
	}
	s.logger.Info("finetune created", zap.String("finetune_id", created.ID), zap.String("mode", req.Mode))
	return created, nil
}

func (s *FinetuneService) Status(ctx context.Context, id string) (finetune.Status, error) {
	id, err := normalizeID(id)
	if err != nil {
		return finetune.Status{}, err
	}
	return s.api.Status(ctx, id)
}

func (s *FinetuneService) Delete(ctx context.Context, id string) error {
	id, err := normalizeID(id)
	if err != nil {
		return err
	}
	return s.api.Delete(ctx, id)
}

func applyFinetuneDefaults(req finetune.Request) finetune.Request {
	req.FinetuneComment = strings.TrimSpace(req.FinetuneComment)
	req.TriggerWord = strings.TrimSpace(req.TriggerWord)
	if req.TriggerWord == "" {
		req.TriggerWord = defaultTriggerWord
	}
	if req.Mode == "" {
		req.Mode = defaultMode
	}
	if req.Iterations == 0 {
		req.Iterations = defaultIterations
	}
	if req.LearningRate == 0 {
		req.LearningRate = defaultLearningRate
	}
	if req.Captioning == nil {
		captioning := true
		req.Captioning = &captioning
	}
	if req.Priority == "" {
		req.Priority = defaultPriority
	}
	if req.FinetuneType == "" {
		req.FinetuneType = defaultFinetuneType
	}
	if req.LoraRank == 0 {
		req.LoraRank = defaultLoraRank
	}
	return req
}

// validateFinetune sólo revisa lo que queda vacío tras el recorte; los rangos y enumerados
// se validan con los tags binding de finetune.Request.
func validateFinetune(req finetune.Request) error {
	switch {
	case strings.TrimSpace(req.FileData) == "":
		return fmt.Errorf("%w: file_data is required", ErrInvalidFinetune)
	case req.FinetuneComment == "":
		return fmt.Errorf("%w: finetune_comment is required", ErrInvalidFinetune)
	}
	return nil
}
