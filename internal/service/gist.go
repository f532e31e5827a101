package service

import (
	"context"
	"sync"

	"github.com/hindsight-ai/hindsight/internal/domain"
	"go.uber.org/zap"
)

// inlineGistMaxLength is the longest content gisted synchronously; anything
// longer gets the fallback gist immediately and an async regeneration.
const inlineGistMaxLength = 2000

// defaultGistWorkers bounds the async gist pool.
const defaultGistWorkers = 4

// GistService produces compressed single-sentence summaries for the context
// packer.
type GistService struct {
	llmClient domain.LLMClient
	logger    *zap.Logger

	tasks chan gistTask
	wg    sync.WaitGroup
	once  sync.Once
	done  chan struct{}
}

type gistTask struct {
	content     string
	onAsyncGist func(gist string)
}

func NewGistService(lc domain.LLMClient, logger *zap.Logger) *GistService {
	return &GistService{
		llmClient: lc,
		logger:    logger,
		tasks:     make(chan gistTask, 64),
		done:      make(chan struct{}),
	}
}

// Start launches the async worker pool. Safe to call once.
func (s *GistService) Start() {
	s.once.Do(func() {
		for i := 0; i < defaultGistWorkers; i++ {
			s.wg.Add(1)
			go s.worker()
		}
	})
}

// Stop signals the workers to exit and waits for them; queued tasks that no
// worker has picked up may be dropped.
func (s *GistService) Stop() {
	close(s.done)
	s.wg.Wait()
}

func (s *GistService) worker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case task := <-s.tasks:
			gist, err := s.generate(context.Background(), task.content)
			if err != nil {
				// The fallback gist is already committed; drop the error.
				s.logger.Debug("async gist generation failed", zap.Error(err))
				continue
			}
			if task.onAsyncGist != nil {
				task.onAsyncGist(gist)
			}
		}
	}
}

// Gist returns a gist for the content. Short content is gisted inline with
// fallback on error. Long content returns the fallback immediately; the LLM
// gist is generated in the background and delivered through onAsyncGist with
// no ordering guarantee across submissions.
func (s *GistService) Gist(ctx context.Context, content string, onAsyncGist func(gist string)) string {
	if len(content) <= inlineGistMaxLength {
		gist, err := s.generate(ctx, content)
		if err != nil {
			s.logger.Debug("inline gist generation failed, using fallback", zap.Error(err))
			return FallbackGist(content)
		}
		return gist
	}

	select {
	case s.tasks <- gistTask{content: content, onAsyncGist: onAsyncGist}:
	default:
		s.logger.Debug("gist queue full, keeping fallback gist")
	}
	return FallbackGist(content)
}

func (s *GistService) generate(ctx context.Context, content string) (string, error) {
	if s.llmClient == nil {
		return FallbackGist(content), nil
	}
	gist, err := s.llmClient.GenerateGist(ctx, content)
	if err != nil {
		return "", err
	}
	if len(gist) > MaxGistLength {
		gist = gist[:MaxGistLength-3] + "..."
	}
	return gist, nil
}
