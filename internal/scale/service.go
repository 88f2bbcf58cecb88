// Package scale serves the live counting-scale reading used by scans.
package scale

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/bintrack-backend/internal/reconcile"
	"github.com/angelmondragon/bintrack-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/bintrack-backend/pkg/errors"
	"github.com/angelmondragon/bintrack-backend/pkg/logger"
	"github.com/angelmondragon/bintrack-backend/pkg/scalebridge"
)

const recentLimit = 20

type cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	ScaleKey(stationID string) string
}

type bridge interface {
	Current(ctx context.Context) (*scalebridge.Reading, error)
}

// Service resolves the current reading of a station and records pushed ones.
type Service interface {
	Current(ctx context.Context, stationID string) (*Reading, error)
	Ingest(ctx context.Context, input IngestInput) (*Reading, error)
	Recent(ctx context.Context, stationID string) ([]models.ScaleReading, error)
}

// Reading is the latest weighing of a station.
type Reading struct {
	StationID       string    `json:"stationId"`
	SerialNo        string    `json:"serialNo,omitempty"`
	NetKg           float64   `json:"netKg"`
	PieceCount      int       `json:"pieceCount"`
	UnitWeightGrams float64   `json:"unitWeightGrams"`
	ReadAt          time.Time `json:"readAt"`
	Source          string    `json:"source"`
}

// ToScaleReading converts the reading into the reconciliation input.
func (r Reading) ToScaleReading() reconcile.ScaleReading {
	return reconcile.ScaleReading{
		NetKg:           r.NetKg,
		PieceCount:      r.PieceCount,
		UnitWeightGrams: r.UnitWeightGrams,
		SerialNo:        r.SerialNo,
		Timestamp:       r.ReadAt,
	}
}

type IngestInput struct {
	StationID       string     `json:"stationId" validate:"required,max=64"`
	SerialNo        string     `json:"serialNo" validate:"max=64"`
	NetKg           float64    `json:"netKg" validate:"gt=0"`
	PieceCount      int        `json:"pieceCount" validate:"gt=0"`
	UnitWeightGrams float64    `json:"unitWeightGrams" validate:"gte=0"`
	ReadAt          *time.Time `json:"readAt"`
}

const (
	sourceCache  = "cache"
	sourceBridge = "bridge"
	sourcePush   = "push"
)

type ServiceParams struct {
	Repo           Repository
	Cache          cache
	Bridge         bridge
	CacheTTL       time.Duration
	DefaultStation string
	Logger         *logger.Logger
	Clock          func() time.Time
}

type service struct {
	repo           Repository
	cache          cache
	bridge         bridge
	ttl            time.Duration
	defaultStation string
	logg           *logger.Logger
	now            func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("scale reading repository required")
	}
	if params.Cache == nil {
		return nil, fmt.Errorf("scale cache required")
	}
	ttl := params.CacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	station := strings.TrimSpace(params.DefaultStation)
	if station == "" {
		station = "default"
	}
	clock := params.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:           params.Repo,
		cache:          params.Cache,
		bridge:         params.Bridge,
		ttl:            ttl,
		defaultStation: station,
		logg:           params.Logger,
		now:            clock,
	}, nil
}

// Current prefers a reading pushed within the cache TTL, then asks the
// bridge. No reading from either is NO_SCALE_DATA_AVAILABLE, which the
// operator resolves by weighing again.
func (s *service) Current(ctx context.Context, stationID string) (*Reading, error) {
	station := s.station(stationID)

	cached, err := s.cache.Get(ctx, s.cache.ScaleKey(station))
	switch {
	case err == nil:
		var reading Reading
		if jsonErr := json.Unmarshal([]byte(cached), &reading); jsonErr == nil {
			reading.Source = sourceCache
			return &reading, nil
		}
		s.warn(ctx, station, "discarding undecodable cached scale reading")
	case !errors.Is(err, goredis.Nil):
		s.warn(ctx, station, "scale cache unavailable, asking the bridge")
	}

	if s.bridge == nil {
		return nil, pkgerrors.NoScaleData(station)
	}
	raw, err := s.bridge.Current(ctx)
	if errors.Is(err, scalebridge.ErrNoData) {
		return nil, pkgerrors.NoScaleData(station)
	}
	if err != nil {
		return nil, err
	}

	reading := fromBridge(station, *raw)
	s.store(ctx, reading)
	reading.Source = sourceBridge
	return &reading, nil
}

func (s *service) Ingest(ctx context.Context, input IngestInput) (*Reading, error) {
	station := strings.TrimSpace(input.StationID)
	if station == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "station id required")
	}
	if input.NetKg <= 0 || input.PieceCount <= 0 || input.UnitWeightGrams < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "net weight and piece count must be positive").
			WithDetails(map[string]any{"stationId": station})
	}
	readAt := s.now()
	if input.ReadAt != nil && !input.ReadAt.IsZero() {
		readAt = input.ReadAt.UTC()
	}

	reading := Reading{
		StationID:       station,
		SerialNo:        strings.TrimSpace(input.SerialNo),
		NetKg:           reconcile.RoundKg(input.NetKg),
		PieceCount:      input.PieceCount,
		UnitWeightGrams: input.UnitWeightGrams,
		ReadAt:          readAt,
		Source:          sourcePush,
	}
	row := &models.ScaleReading{
		StationID:       reading.StationID,
		SerialNo:        reading.SerialNo,
		NetKg:           reading.NetKg,
		PieceCount:      reading.PieceCount,
		UnitWeightGrams: reading.UnitWeightGrams,
		ReadAt:          reading.ReadAt,
	}
	if err := s.repo.Insert(ctx, row); err != nil {
		return nil, pkgerrors.WrapStorage(err, "record scale reading")
	}
	s.store(ctx, reading)
	return &reading, nil
}

func (s *service) Recent(ctx context.Context, stationID string) ([]models.ScaleReading, error) {
	rows, err := s.repo.Recent(ctx, s.station(stationID), recentLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list scale readings")
	}
	return rows, nil
}

func (s *service) store(ctx context.Context, reading Reading) {
	reading.Source = ""
	payload, err := json.Marshal(reading)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, s.cache.ScaleKey(reading.StationID), payload, s.ttl); err != nil {
		s.warn(ctx, reading.StationID, "failed to cache scale reading")
	}
}

func (s *service) station(stationID string) string {
	if trimmed := strings.TrimSpace(stationID); trimmed != "" {
		return trimmed
	}
	return s.defaultStation
}

func (s *service) warn(ctx context.Context, station, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.logg.WithStationID(ctx, station), msg)
}

// fromBridge maps null bridge fields to zero so reconciliation reports the
// reading as invalid instead of guessing.
func fromBridge(station string, raw scalebridge.Reading) Reading {
	reading := Reading{
		StationID: station,
		SerialNo:  raw.SerialNo,
		ReadAt:    raw.Timestamp,
	}
	if raw.NetKg != nil {
		reading.NetKg = reconcile.RoundKg(*raw.NetKg)
	}
	if raw.Pieces != nil {
		reading.PieceCount = *raw.Pieces
	}
	if raw.UnitWeightGrams != nil {
		reading.UnitWeightGrams = *raw.UnitWeightGrams
	}
	return reading
}
