package recap

import (
	"context"
	"log/slog"

	"github.com/splax/izzocam/internal/domain"
	"github.com/splax/izzocam/internal/service/commentary"
)

// RequesterID tags entries produced by the recap job.
const RequesterID = "hourly-cron-job"

// Generator produces commentary entries.
type Generator interface {
	Generate(ctx context.Context, in commentary.GenerateInput) (domain.CommentaryEntry, error)
}

// Result describes one recap run. Skipped runs carry the guard's decision and
// no entry.
type Result struct {
	Decision Decision                `json:"decision"`
	Entry    *domain.CommentaryEntry `json:"entry,omitempty"`
}

// Service runs the guarded hourly recap.
type Service struct {
	guard     *Guard
	generator Generator
	logger    *slog.Logger
}

// NewService builds a recap runner.
func NewService(guard *Guard, generator Generator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{guard: guard, generator: generator, logger: logger.With("component", "recap")}
}

// Run checks the guard and, when due, generates an hourly entry. A skipped
// run is not an error.
func (s *Service) Run(ctx context.Context) (Result, error) {
	decision := s.guard.Check(ctx)
	if !decision.Generate {
		return Result{Decision: decision}, nil
	}
	s.logger.Info("generating hourly recap", "snapshots", decision.SnapshotCount)
	entry, err := s.generator.Generate(ctx, commentary.GenerateInput{
		Mode:        domain.ModeHourly,
		RequesterID: RequesterID,
	})
	if err != nil {
		s.logger.Error("hourly recap failed", "error", err)
		return Result{Decision: decision}, err
	}
	s.logger.Info("hourly recap stored", "entry_id", entry.ID, "title", entry.Summary.Title)
	return Result{Decision: decision, Entry: &entry}, nil
}
