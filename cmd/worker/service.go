package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/angelmondragon/bintrack-backend/pkg/logger"
)

const (
	defaultReadinessAttempts = 5
	defaultReadinessDelay    = 2 * time.Second
)

type readinessCheck func(context.Context) error

// consumer is the label print-job subscriber.
type consumer interface {
	Run(ctx context.Context) error
}

type ServiceParams struct {
	Logger   *logger.Logger
	Checks   map[string]readinessCheck
	Consumer consumer

	ReadinessAttempts int
	ReadinessDelay    time.Duration
}

// Service waits for its dependencies, then runs the label consumer until the
// context ends.
type Service struct {
	logg     *logger.Logger
	checks   map[string]readinessCheck
	consumer consumer
	attempts int
	delay    time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.Consumer == nil:
		return nil, errors.New("label consumer is required")
	}
	for name, check := range params.Checks {
		if check == nil {
			return nil, fmt.Errorf("readiness check %q is nil", name)
		}
	}
	attempts := params.ReadinessAttempts
	if attempts <= 0 {
		attempts = defaultReadinessAttempts
	}
	delay := params.ReadinessDelay
	if delay <= 0 {
		delay = defaultReadinessDelay
	}
	return &Service{
		logg:     params.Logger,
		checks:   params.Checks,
		consumer: params.Consumer,
		attempts: attempts,
		delay:    delay,
	}, nil
}

// awaitReady retries every failing check up to the configured attempts.
func (s *Service) awaitReady(ctx context.Context) error {
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		var err error
		for attempt := 1; attempt <= s.attempts; attempt++ {
			if err = s.checks[name](ctx); err == nil {
				break
			}
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"dependency": name,
				"attempt":    attempt,
				"error":      err.Error(),
			}), "dependency not ready")
			if attempt == s.attempts {
				break
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.delay):
			}
		}
		if err != nil {
			return fmt.Errorf("%s not ready: %w", name, err)
		}
	}
	s.logg.Info(ctx, "worker dependencies ready")
	return nil
}

// Run returns ctx.Err() after a clean shutdown.
func (s *Service) Run(ctx context.Context) error {
	if err := s.awaitReady(ctx); err != nil {
		return err
	}
	err := s.consumer.Run(ctx)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil {
		return fmt.Errorf("label consumer: %w", err)
	}
	return nil
}
