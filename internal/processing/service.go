package processing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/RMahshie/resotrack/internal/acquisition"
	"github.com/RMahshie/resotrack/internal/recording"
	"github.com/RMahshie/resotrack/pkg/models"
)

// Sampler is the acquisition session as driven by the loop
type Sampler interface {
	Sample(elapsed time.Duration) (*models.Sample, error)
	Headers() []string
	Segments() []models.Segment
	BandwidthFactor() float64
	TrackingEnabled() bool
	Pending() int
	SetSegmentEnabled(index int, enabled bool) error
	SetBandwidthFactorOverride(factor *float64) error
	SetTrackingOverride(enabled bool) error
	ResetTracking() error
}

// Status is a consistent view of the acquisition state after the last tick
type Status struct {
	Segments        []models.Segment
	BandwidthFactor float64
	TrackingEnabled bool
	Pending         int
	Cycles          uint64
	Accepted        uint64
}

// AcquisitionService runs the tick-driven acquisition loop and exposes its
// results to other goroutines
type AcquisitionService interface {
	Run(ctx context.Context) error
	Latest() (*models.Sample, bool)
	Headers() []string
	Status() Status
	SetSegmentEnabled(index int, enabled bool) error
	SetBandwidthFactorOverride(factor *float64) error
	SetTrackingOverride(enabled bool) error
	ResetTracking() error
}

type acquisitionService struct {
	sampler  Sampler
	recorder recording.Service
	interval time.Duration

	mu       sync.RWMutex
	latest   *models.Sample
	headers  []string
	status   Status
	cycles   uint64
	accepted uint64
}

// NewAcquisitionService creates the loop. recorder may be nil.
func NewAcquisitionService(sampler Sampler, recorder recording.Service, interval time.Duration) AcquisitionService {
	s := &acquisitionService{
		sampler:  sampler,
		recorder: recorder,
		interval: interval,
		headers:  sampler.Headers(),
	}
	s.publish(nil, false)
	return s
}

// Run samples once per interval until ctx is cancelled. A fatal cycle
// error ends the loop and is returned.
func (s *acquisitionService) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	start := time.Now()
	log.Info().Dur("interval", s.interval).Msg("Acquisition loop started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Acquisition loop stopped")
			return nil
		case <-ticker.C:
			if err := s.tick(ctx, time.Since(start)); err != nil {
				log.Error().Err(err).Msg("Acquisition loop failed")
				return err
			}
		}
	}
}

func (s *acquisitionService) tick(ctx context.Context, elapsed time.Duration) error {
	sample, err := s.sampler.Sample(elapsed)
	if err != nil {
		s.publish(nil, true)
		return fmt.Errorf("acquisition cycle: %w", err)
	}
	s.publish(sample, true)

	if sample != nil && s.recorder != nil {
		if err := s.recorder.Observe(ctx, acquisition.FormatSample(sample)); err != nil {
			log.Warn().Err(err).Msg("Failed to record sample")
		}
	}
	return nil
}

// publish snapshots the session from the loop goroutine. A nil sample
// keeps the previous latest sample.
func (s *acquisitionService) publish(sample *models.Sample, cycle bool) {
	status := Status{
		Segments:        s.sampler.Segments(),
		BandwidthFactor: s.sampler.BandwidthFactor(),
		TrackingEnabled: s.sampler.TrackingEnabled(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cycle {
		s.cycles++
	}
	if sample != nil {
		s.latest = sample
		s.accepted++
	}
	status.Cycles = s.cycles
	status.Accepted = s.accepted
	s.status = status
}

func (s *acquisitionService) Latest() (*models.Sample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.latest != nil
}

// Headers are fixed by setup, so they are captured once
func (s *acquisitionService) Headers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.headers...)
}

func (s *acquisitionService) Status() Status {
	s.mu.RLock()
	status := s.status
	s.mu.RUnlock()

	status.Segments = append([]models.Segment(nil), status.Segments...)
	status.Pending = s.sampler.Pending()
	return status
}

func (s *acquisitionService) SetSegmentEnabled(index int, enabled bool) error {
	return s.sampler.SetSegmentEnabled(index, enabled)
}

func (s *acquisitionService) SetBandwidthFactorOverride(factor *float64) error {
	return s.sampler.SetBandwidthFactorOverride(factor)
}

func (s *acquisitionService) SetTrackingOverride(enabled bool) error {
	return s.sampler.SetTrackingOverride(enabled)
}

func (s *acquisitionService) ResetTracking() error {
	return s.sampler.ResetTracking()
}
