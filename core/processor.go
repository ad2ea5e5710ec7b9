package core

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/openann19/petphotos/config"
	apperrors "github.com/openann19/petphotos/errors"
	"github.com/openann19/petphotos/utils"
)

// Processor is the image engine behind the asset processor collaborator.
// It drains a source, runs steps with hooks and transient retries, and can
// fan out named variants. It is safe for concurrent use.
type Processor struct {
	cfg      config.Processing
	registry Registry
	hooks    []Hook
	logger   Logger

	processedCount int64
	errorCount     int64
}

// New creates a Processor with the given processing config.
func New(cfg config.Processing, reg Registry) *Processor {
	return &Processor{cfg: cfg, registry: reg}
}

// SetLogger attaches a structured logger.
func (p *Processor) SetLogger(l Logger) { p.logger = l }

// AddHook registers a pipeline hook.
func (p *Processor) AddHook(h Hook) { p.hooks = append(p.hooks, h) }

// Registry returns the underlying registry so callers can register
// encoders/decoders after construction.
func (p *Processor) Registry() Registry { return p.registry }

// Process reads from src, runs steps, and returns a ProcessingResult.
func (p *Processor) Process(ctx context.Context, src Source, steps ...Step) (*ProcessingResult, error) {
	if len(steps) == 0 {
		return nil, apperrors.New(apperrors.CategoryPipeline, "process", apperrors.ErrEmptyInput)
	}

	start := time.Now()

	r := src.Reader
	if p.cfg.MaxInputBytes > 0 {
		r = &utils.LimitedReader{R: src.Reader, Max: p.cfg.MaxInputBytes}
	}
	buf, err := utils.DrainReader(ctx, r, p.cfg.ChunkSize)
	if err != nil {
		atomic.AddInt64(&p.errorCount, 1)
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "process.drain", err)
	}
	rawBytes := utils.CloneBytes(buf.Bytes())
	utils.ReleaseBuffer(buf)
	if len(rawBytes) == 0 {
		atomic.AddInt64(&p.errorCount, 1)
		return nil, apperrors.New(apperrors.CategoryInput, "process", apperrors.ErrEmptyInput)
	}

	// Sniffed bytes win over the content-type hint.
	format := Format(utils.DetectFormat(rawBytes))
	if format == FormatUnknown && src.ContentType != "" {
		format = FormatFromMime(src.ContentType)
	}

	current := &ImageData{
		Data:         rawBytes,
		Format:       format,
		OriginalSize: int64(len(rawBytes)),
	}

	timings := make(map[string]time.Duration, len(steps))
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			atomic.AddInt64(&p.errorCount, 1)
			return nil, apperrors.Wrap(apperrors.CategoryPipeline, step.Name(), err)
		}
		p.notifyBefore(ctx, step.Name(), current)
		t := time.Now()
		next, stepErr := p.runWithRetry(ctx, step, current)
		elapsed := time.Since(t)
		timings[step.Name()] = elapsed
		p.notifyAfter(ctx, step.Name(), next, elapsed, stepErr)
		if stepErr != nil {
			atomic.AddInt64(&p.errorCount, 1)
			return nil, stepErr
		}
		current = next
	}

	atomic.AddInt64(&p.processedCount, 1)
	return &ProcessingResult{
		Primary:        current,
		ProcessingTime: time.Since(start),
		StepTimings:    timings,
	}, nil
}

// ProcessVariants runs base steps and then each VariantDefinition against a
// copy of the result in parallel.
func (p *Processor) ProcessVariants(ctx context.Context, src Source, baseSteps []Step, variants []VariantDefinition) (*ProcessingResult, error) {
	base, err := p.Process(ctx, src, baseSteps...)
	if err != nil {
		return nil, err
	}

	variantResults := make(map[string]*ImageData, len(variants))
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		firstErr error
	)
	for _, v := range variants {
		wg.Add(1)
		go func(vd VariantDefinition) {
			defer wg.Done()
			clone := *base.Primary
			result := &clone
			var stepErr error
			for _, step := range vd.Steps {
				result, stepErr = step.Execute(ctx, result)
				if stepErr != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = stepErr
					}
					mu.Unlock()
					return
				}
			}
			mu.Lock()
			variantResults[vd.Name] = result
			mu.Unlock()
		}(v)
	}
	wg.Wait()

	if firstErr != nil {
		atomic.AddInt64(&p.errorCount, 1)
		return nil, firstErr
	}
	base.Variants = variantResults
	return base, nil
}

func (p *Processor) runWithRetry(ctx context.Context, step Step, img *ImageData) (*ImageData, error) {
	var (
		result *ImageData
		err    error
	)
	for i := 0; i <= p.cfg.MaxRetries; i++ {
		result, err = step.Execute(ctx, img)
		if err == nil || !apperrors.IsRetryable(err) {
			return result, err
		}
		if p.logger != nil {
			p.logger.Debug("pipeline.step.retry", "step", step.Name(), "attempt", i+1, "error", err.Error())
		}
		if i < p.cfg.MaxRetries {
			select {
			case <-ctx.Done():
				return nil, apperrors.Wrap(apperrors.CategoryPipeline, step.Name(), ctx.Err())
			case <-time.After(p.cfg.RetryDelay):
			}
		}
	}
	return result, err
}

func (p *Processor) notifyBefore(ctx context.Context, name string, img *ImageData) {
	for _, h := range p.hooks {
		h.BeforeStep(ctx, name, img)
	}
}

func (p *Processor) notifyAfter(ctx context.Context, name string, img *ImageData, d time.Duration, err error) {
	for _, h := range p.hooks {
		h.AfterStep(ctx, name, img, d, err)
	}
}

// ProcessedCount returns the total number of successfully processed images.
func (p *Processor) ProcessedCount() int64 { return atomic.LoadInt64(&p.processedCount) }

// ErrorCount returns the total number of processing errors.
func (p *Processor) ErrorCount() int64 { return atomic.LoadInt64(&p.errorCount) }
