package controllers

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"github.com/angelmondragon/bintrack-backend/internal/bins"
	"github.com/angelmondragon/bintrack-backend/internal/checklist"
	"github.com/angelmondragon/bintrack-backend/internal/components"
	"github.com/angelmondragon/bintrack-backend/internal/labels"
	"github.com/angelmondragon/bintrack-backend/internal/reconcile"
	"github.com/angelmondragon/bintrack-backend/internal/scans"
	"github.com/angelmondragon/bintrack-backend/pkg/config"
	"github.com/angelmondragon/bintrack-backend/pkg/db/models"
	"github.com/angelmondragon/bintrack-backend/pkg/enums"
	"github.com/angelmondragon/bintrack-backend/pkg/logger"
)

func testConfig() *config.Config {
	return &config.Config{App: config.AppConfig{Env: "test"}}
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func addRouteParam(req *http.Request, key, value string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

type testBinService struct {
	bins.Service
	listFn      func(ctx context.Context, params bins.ListParams) (*bins.ListResult, error)
	listByJTCFn func(ctx context.Context, jtc string, status *enums.BinStatus) ([]models.Bin, error)
	setStatusFn func(ctx context.Context, input bins.SetStatusInput) (*models.Bin, error)
	releaseFn   func(ctx context.Context, input bins.ReleaseInput) (*bins.ReleaseResult, error)
}

func (s *testBinService) List(ctx context.Context, params bins.ListParams) (*bins.ListResult, error) {
	return s.listFn(ctx, params)
}

func (s *testBinService) ListByJTC(ctx context.Context, jtc string, status *enums.BinStatus) ([]models.Bin, error) {
	return s.listByJTCFn(ctx, jtc, status)
}

func (s *testBinService) SetStatus(ctx context.Context, input bins.SetStatusInput) (*models.Bin, error) {
	return s.setStatusFn(ctx, input)
}

func (s *testBinService) Release(ctx context.Context, input bins.ReleaseInput) (*bins.ReleaseResult, error) {
	return s.releaseFn(ctx, input)
}

type testScanService struct {
	saveFn func(ctx context.Context, input scans.SaveScanInput) (*scans.SaveScanResult, error)
}

func (s *testScanService) SaveScan(ctx context.Context, input scans.SaveScanInput) (*scans.SaveScanResult, error) {
	return s.saveFn(ctx, input)
}

type testComponentService struct {
	getFn       func(ctx context.Context, componentID string) (*models.ComponentMaster, error)
	lastKnownFn func(ctx context.Context, binID, componentID string) (*components.LastKnown, error)
}

func (s *testComponentService) Get(ctx context.Context, componentID string) (*models.ComponentMaster, error) {
	return s.getFn(ctx, componentID)
}

func (s *testComponentService) List(context.Context) ([]models.ComponentMaster, error) {
	return nil, nil
}

func (s *testComponentService) LastKnown(ctx context.Context, binID, componentID string) (*components.LastKnown, error) {
	return s.lastKnownFn(ctx, binID, componentID)
}

func (s *testComponentService) Calibrate(context.Context, *gorm.DB, reconcile.CalibrationUpdate) (bool, error) {
	return false, nil
}

func (s *testComponentService) RecordWeight(context.Context, components.RecordWeightInput) (*components.RecordWeightResult, error) {
	return nil, nil
}

type testChecklistService struct {
	forWorkOrderFn func(ctx context.Context, jtc string, sessionBinIDs []string) (*checklist.Checklist, error)
}

func (s *testChecklistService) ForWorkOrder(ctx context.Context, jtc string, sessionBinIDs []string) (*checklist.Checklist, error) {
	return s.forWorkOrderFn(ctx, jtc, sessionBinIDs)
}

type testLabelService struct {
	labels.Service
	ackFn func(ctx context.Context, input labels.AckInput) (*models.PrintJob, error)
}

func (s *testLabelService) Ack(ctx context.Context, input labels.AckInput) (*models.PrintJob, error) {
	return s.ackFn(ctx, input)
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }
