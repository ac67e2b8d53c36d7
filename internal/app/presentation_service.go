package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"gopherai-slides/internal/ai"
	"gopherai-slides/internal/assets"
	"gopherai-slides/internal/logger"
	"gopherai-slides/internal/model"
	"gopherai-slides/internal/source"
	"gopherai-slides/internal/structured"
	"gopherai-slides/internal/textsplit"
	"gopherai-slides/internal/vectorindex"
)

const (
	defaultImageConcurrency = 3
	defaultImageTimeout     = 120 * time.Second
	defaultMaxImages        = 5
)

// PresentationStore is the record store the pipeline writes to.
type PresentationStore interface {
	Create(ctx context.Context, p *model.Presentation) error
	GetByID(ctx context.Context, id string) (*model.Presentation, error)
	List(ctx context.Context, limit int) ([]model.Presentation, error)
	ClaimPending(ctx context.Context, id string) (bool, error)
	MarkCompleted(ctx context.Context, id, title, content string) error
	MarkFailed(ctx context.Context, id, reason string) error
	AddImage(ctx context.Context, img *model.PresentationImage) error
	Delete(ctx context.Context, id string) ([]model.PresentationImage, error)
}

type JobPublisher interface {
	Publish(ctx context.Context, job model.GenerationJob) error
}

// AnswerInvalidator is the part of the answer cache the pipeline needs.
type AnswerInvalidator interface {
	Invalidate(ctx context.Context, presentationID string) error
}

type PipelineOptions struct {
	ChunkSize        int
	ChunkOverlap     int
	ImageConcurrency int
	ImageTimeout     time.Duration
	MaxImages        int
}

type PresentationDeps struct {
	Store      PresentationStore
	Normalizer *source.Normalizer
	Generator  ai.Generator
	Embedder   ai.Embedder
	Images     ai.ImageGenerator
	Index      vectorindex.Index
	Assets     assets.Store
	// Publisher and Cache are optional.
	Publisher JobPublisher
	Cache     AnswerInvalidator
	Log       *logger.Logger
}

type GenerateInput struct {
	Prompt    string
	URLs      []string
	Documents []source.Document
}

func (in GenerateInput) empty() bool {
	return strings.TrimSpace(in.Prompt) == "" && len(in.URLs) == 0 && len(in.Documents) == 0
}

type PresentationService struct {
	store      PresentationStore
	normalizer *source.Normalizer
	generator  ai.Generator
	embedder   ai.Embedder
	images     ai.ImageGenerator
	index      vectorindex.Index
	assets     assets.Store
	publisher  JobPublisher
	cache      AnswerInvalidator
	opts       PipelineOptions
	providers  []contentProvider
	log        *logger.Logger
}

func NewPresentationService(deps PresentationDeps, opts PipelineOptions) *PresentationService {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = textsplit.DefaultChunkSize
		opts.ChunkOverlap = textsplit.DefaultOverlap
	}
	if opts.ImageConcurrency <= 0 {
		opts.ImageConcurrency = defaultImageConcurrency
	}
	if opts.ImageTimeout <= 0 {
		opts.ImageTimeout = defaultImageTimeout
	}
	if opts.MaxImages <= 0 {
		opts.MaxImages = defaultMaxImages
	}
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	s := &PresentationService{
		store:      deps.Store,
		normalizer: deps.Normalizer,
		generator:  deps.Generator,
		embedder:   deps.Embedder,
		images:     deps.Images,
		index:      deps.Index,
		assets:     deps.Assets,
		publisher:  deps.Publisher,
		cache:      deps.Cache,
		opts:       opts,
		log:        log.With("service", "PresentationService"),
	}
	s.providers = defaultProviders()
	return s
}

// Create stores a new pending presentation.
func (s *PresentationService) Create(ctx context.Context, input GenerateInput) (*model.Presentation, error) {
	if input.empty() {
		return nil, ErrInvalidInput
	}
	p := &model.Presentation{
		ID:     uuid.NewString(),
		Status: model.StatusPending,
		Prompt: strings.TrimSpace(input.Prompt),
	}
	if err := s.store.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Generate runs the whole pipeline synchronously and returns the stored result.
func (s *PresentationService) Generate(ctx context.Context, input GenerateInput) (*model.Presentation, error) {
	p, err := s.Create(ctx, input)
	if err != nil {
		return nil, err
	}
	if err := s.Run(ctx, p.ID, input); err != nil {
		return nil, err
	}
	return s.Get(ctx, p.ID)
}

// GenerateAsync creates the record and queues the run.
func (s *PresentationService) GenerateAsync(ctx context.Context, input GenerateInput) (*model.Presentation, error) {
	if s.publisher == nil {
		return nil, ErrAsyncUnavailable
	}
	p, err := s.Create(ctx, input)
	if err != nil {
		return nil, err
	}

	job := model.GenerationJob{PresentationID: p.ID, Prompt: input.Prompt, URLs: input.URLs}
	for _, d := range input.Documents {
		job.Documents = append(job.Documents, model.JobDocument{Name: d.Name, ContentType: d.ContentType, Data: d.Data})
	}
	if err := s.publisher.Publish(ctx, job); err != nil {
		s.markFailed(context.WithoutCancel(ctx), p.ID, err)
		return nil, fmt.Errorf("queue generation failed: %w", err)
	}
	return p, nil
}

// HandleJob is the queue entry point. Jobs for presentations that are no
// longer pending (redeliveries, duplicates) are skipped.
func (s *PresentationService) HandleJob(ctx context.Context, job model.GenerationJob) error {
	input := GenerateInput{Prompt: job.Prompt, URLs: job.URLs}
	for _, d := range job.Documents {
		input.Documents = append(input.Documents, source.Document{Name: d.Name, ContentType: d.ContentType, Data: d.Data})
	}
	err := s.Run(ctx, job.PresentationID, input)
	if errors.Is(err, ErrNotPending) {
		s.log.Info("skipping generation job", "presentation_id", job.PresentationID)
		return nil
	}
	return err
}

// Run executes steps 2-8 for a pending presentation. The run is detached from
// the caller's cancellation; it always ends completed or failed.
func (s *PresentationService) Run(ctx context.Context, id string, input GenerateInput) error {
	ctx = context.WithoutCancel(ctx)

	claimed, err := s.store.ClaimPending(ctx, id)
	if err != nil {
		return &ClaimError{PresentationID: id, Err: err}
	}
	if !claimed {
		return ErrNotPending
	}

	log := s.log.With("presentation_id", id)
	start := time.Now()
	if err := s.run(ctx, id, input, log); err != nil {
		log.Error("generation failed", "error", err, "elapsed", time.Since(start).String())
		s.markFailed(ctx, id, err)
		return err
	}
	log.Info("generation completed", "elapsed", time.Since(start).String())
	return nil
}

func (s *PresentationService) markFailed(ctx context.Context, id string, cause error) {
	if err := s.store.MarkFailed(ctx, id, UserMessage(cause)); err != nil {
		s.log.Error("mark presentation failed failed", "presentation_id", id, "error", err)
	}
}

func (s *PresentationService) run(ctx context.Context, id string, input GenerateInput, log *logger.Logger) error {
	r := &generationRun{
		id:         id,
		collection: vectorindex.CollectionName(id),
		prompt:     strings.TrimSpace(input.Prompt),
		log:        log,
	}

	log.Info("stage", "stage", StageNormalizing)
	docs, err := s.normalizer.NormalizeDocuments(ctx, input.Documents)
	if err != nil {
		return stageErr(StageNormalizing, err)
	}
	r.documents = docs

	urls := source.MergeURLs(input.URLs, source.ExtractURLs(input.Prompt))
	if len(urls) > 0 {
		r.urls = s.normalizer.ScrapeURLs(ctx, urls)
	}

	log.Info("stage", "stage", StageDrafting)
	content, err := s.collectContent(ctx, r)
	if err != nil {
		return stageErr(StageDrafting, err)
	}

	log.Info("stage", "stage", StageImaging)
	images, err := s.generateImages(ctx, r, content)
	if err != nil {
		return stageErr(StageImaging, err)
	}

	log.Info("stage", "stage", StageAssembling, "images", len(images))
	raw, err := s.generator.Complete(ctx, presentationSystemPrompt, presentationUserPrompt(r.prompt, content, images))
	if err != nil {
		return stageErr(StageAssembling, err)
	}
	parsed := structured.ParsePresentation(raw)

	if err := s.store.MarkCompleted(ctx, id, parsed.Title, parsed.Content); err != nil {
		return stageErr(StagePersisting, err)
	}
	return nil
}

// collectContent walks the provider chain and joins the produced content in
// chain order.
func (s *PresentationService) collectContent(ctx context.Context, r *generationRun) (string, error) {
	var parts []string
	for _, p := range s.providers {
		if p.policy == runWhenEmpty && len(parts) > 0 {
			continue
		}
		text, err := p.provide(ctx, s, r)
		if err != nil {
			return "", fmt.Errorf("%s content: %w", p.name, err)
		}
		if text = strings.TrimSpace(text); text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return "", ErrNoContent
	}
	return strings.Join(parts, "\n\n"), nil
}

// indexText chunks, embeds and stores text in the run's collection. Failures
// are logged; a presentation without a knowledge base is still usable.
func (s *PresentationService) indexText(ctx context.Context, r *generationRun, idPrefix, text string) {
	chunks := textsplit.New(
		textsplit.WithChunkSize(s.opts.ChunkSize),
		textsplit.WithOverlap(s.opts.ChunkOverlap),
		textsplit.WithIDPrefix(idPrefix),
	).Split(text)
	if err := s.indexChunks(ctx, r.collection, chunks); err != nil {
		r.log.Warn("indexing failed", "prefix", idPrefix, "error", err)
		return
	}
	r.log.Debug("indexed content", "prefix", idPrefix, "chunks", len(chunks))
}

func (s *PresentationService) indexChunks(ctx context.Context, collection string, chunks []textsplit.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	vectors, err := s.embedder.Embed(ctx, textsplit.Texts(chunks))
	if err != nil {
		return err
	}
	existed, err := s.index.CollectionExists(ctx, collection)
	if err != nil {
		return err
	}
	if err := s.index.EnsureCollection(ctx, collection); err != nil {
		return err
	}
	records := make([]vectorindex.Record, len(chunks))
	for i, c := range chunks {
		records[i] = vectorindex.Record{ID: c.ID, Vector: vectors[i], Text: c.Text}
	}
	if err := s.index.Upsert(ctx, collection, records); err != nil {
		// An empty collection would read as an existing knowledge base and
		// block the rebuild.
		if !existed {
			if derr := s.index.DeleteCollection(ctx, collection); derr != nil {
				return errors.Join(err, derr)
			}
		}
		return err
	}
	return nil
}

// generateImages returns the saved images in directive order. Directive
// generation errors are fatal; everything per image is best-effort.
func (s *PresentationService) generateImages(ctx context.Context, r *generationRun, content string) ([]imageRef, error) {
	if s.images == nil || s.assets == nil {
		return nil, nil
	}
	raw, err := s.generator.Complete(ctx, imageDirectivesPrompt(s.opts.MaxImages), imageDirectivesUserPrompt(content))
	if err != nil {
		return nil, err
	}
	directives, err := structured.ParseImageDirectives(raw)
	if err != nil {
		r.log.Warn("image directives unusable, continuing without images", "error", err)
		return nil, nil
	}
	if len(directives) > s.opts.MaxImages {
		directives = directives[:s.opts.MaxImages]
	}

	saved := make([]*imageRef, len(directives))
	g := new(errgroup.Group)
	g.SetLimit(s.opts.ImageConcurrency)
	for i, d := range directives {
		g.Go(func() error {
			ref, err := s.generateImage(ctx, r.id, i, d)
			if err != nil {
				r.log.Warn("image omitted", "position", i, "error", err)
				return nil
			}
			saved[i] = ref
			return nil
		})
	}
	_ = g.Wait()

	out := make([]imageRef, 0, len(saved))
	for _, ref := range saved {
		if ref != nil {
			out = append(out, *ref)
		}
	}
	return out, nil
}

func (s *PresentationService) generateImage(ctx context.Context, id string, position int, d structured.ImageDirective) (*imageRef, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.ImageTimeout)
	defer cancel()

	img, err := s.images.GenerateImage(ctx, d.Prompt)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	url, err := s.assets.Save(ctx, assets.ImageKey(id, position, img.MimeType), img.MimeType, img.Bytes)
	if err != nil {
		return nil, fmt.Errorf("save: %w", err)
	}
	description := strings.TrimSpace(d.Description)
	if description == "" {
		description = d.Prompt
	}
	row := &model.PresentationImage{
		PresentationID: id,
		Position:       position,
		URL:            url,
		Description:    description,
		Prompt:         d.Prompt,
	}
	if err := s.store.AddImage(ctx, row); err != nil {
		return nil, fmt.Errorf("record: %w", err)
	}
	return &imageRef{URL: url, Description: description}, nil
}

// Get loads a presentation. For completed presentations whose knowledge base
// is missing, it rebuilds one from the slide content; that never fails the read.
func (s *PresentationService) Get(ctx context.Context, id string) (*model.Presentation, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrInvalidInput
	}
	p, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrPresentationNotFound
	}
	if rebuildable(p) {
		if _, err := s.backfillKnowledgeBase(ctx, p); err != nil {
			s.log.Warn("rebuild knowledge base failed", "presentation_id", p.ID, "error", err)
		}
	}
	return p, nil
}

// RebuildKnowledgeBase indexes a completed presentation's slides when its
// collection is missing. It reports whether anything was indexed.
func (s *PresentationService) RebuildKnowledgeBase(ctx context.Context, id string) (bool, error) {
	p, err := s.store.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if p == nil || !rebuildable(p) {
		return false, nil
	}
	return s.backfillKnowledgeBase(ctx, p)
}

func rebuildable(p *model.Presentation) bool {
	return p.Status == model.StatusCompleted && strings.TrimSpace(p.Content) != ""
}

func (s *PresentationService) backfillKnowledgeBase(ctx context.Context, p *model.Presentation) (bool, error) {
	collection := vectorindex.CollectionName(p.ID)
	exists, err := s.index.CollectionExists(ctx, collection)
	if err != nil {
		return false, fmt.Errorf("check knowledge base failed: %w", err)
	}
	if exists {
		return false, nil
	}

	text := strings.Join(structured.Slides(p.Content), "\n\n")
	chunks := textsplit.New().Paragraphs(text)
	if err := s.indexChunks(ctx, collection, chunks); err != nil {
		return false, err
	}
	s.log.Info("rebuilt knowledge base", "presentation_id", p.ID, "chunks", len(chunks))
	return len(chunks) > 0, nil
}

func (s *PresentationService) List(ctx context.Context, limit int) ([]model.Presentation, error) {
	return s.store.List(ctx, limit)
}

// Delete removes the record and, best-effort, its images, index and cached answers.
func (s *PresentationService) Delete(ctx context.Context, id string) error {
	p, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if p == nil {
		return ErrPresentationNotFound
	}
	if _, err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	log := s.log.With("presentation_id", id)
	if s.assets != nil {
		if err := s.assets.DeletePrefix(ctx, assets.PresentationPrefix(id)); err != nil {
			log.Warn("delete images failed", "error", err)
		}
	}
	if err := s.index.DeleteCollection(ctx, vectorindex.CollectionName(id)); err != nil {
		log.Warn("delete knowledge base failed", "error", err)
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, id); err != nil {
			log.Warn("invalidate answers failed", "error", err)
		}
	}
	return nil
}
