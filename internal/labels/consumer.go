package labels

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bintrack-backend/internal/bins"
	"github.com/angelmondragon/bintrack-backend/internal/workorders"
	dbpkg "github.com/angelmondragon/bintrack-backend/pkg/db"
	"github.com/angelmondragon/bintrack-backend/pkg/db/models"
	"github.com/angelmondragon/bintrack-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bintrack-backend/pkg/errors"
	"github.com/angelmondragon/bintrack-backend/pkg/logger"
	"github.com/angelmondragon/bintrack-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/bintrack-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/bintrack-backend/pkg/outbox/registry"
)

const printJobConsumer = "label-print-jobs"

// NewDecoders registers the payload versions the label worker understands.
func NewDecoders() *registry.Decoders {
	reg := registry.NewDecoders()
	// Registration of a fixed, valid pair cannot fail.
	_ = registry.RegisterJSON(reg, enums.EventLabelRequested, 1, func(event *payloads.LabelRequestedEvent) error {
		if event.BinID == "" {
			return errors.New("bin id missing")
		}
		return nil
	})
	return reg
}

type ConsumerParams struct {
	Repo         Repository
	Bins         bins.Repository
	WorkOrders   workorders.Repository
	Subscription *pubsub.Subscriber
	Idempotency  *idempotency.Manager
	Decoders     *registry.Decoders
	Metrics      printMetrics
	Logger       *logger.Logger
}

// Consumer turns label_requested events into queued print jobs.
type Consumer struct {
	repo         Repository
	bins         bins.Repository
	workOrders   workorders.Repository
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	decoders     *registry.Decoders
	metrics      printMetrics
	logg         *logger.Logger
}

func NewConsumer(params ConsumerParams) (*Consumer, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("print job repository required")
	}
	if params.Bins == nil {
		return nil, fmt.Errorf("bin repository required")
	}
	if params.WorkOrders == nil {
		return nil, fmt.Errorf("work order repository required")
	}
	if params.Subscription == nil {
		return nil, fmt.Errorf("labels subscription required")
	}
	if params.Idempotency == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	decoders := params.Decoders
	if decoders == nil {
		decoders = NewDecoders()
	}
	return &Consumer{
		repo:         params.Repo,
		bins:         params.Bins,
		workOrders:   params.WorkOrders,
		subscription: params.Subscription,
		idempotency:  params.Idempotency,
		decoders:     decoders,
		metrics:      params.Metrics,
		logg:         params.Logger,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
	job  *models.PrintJob
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := msg.Attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	if eventType != string(enums.EventLabelRequested) {
		c.logg.Info(logCtx, "skipping non-label event")
		return processResult{ack: true}
	}

	envelope, eventID, err := registry.OpenEnvelope(msg.Data)
	if err != nil {
		c.logg.Error(logCtx, "unusable label envelope", err)
		return processResult{ack: true}
	}
	logCtx = c.logg.WithField(logCtx, "event_id", eventID.String())

	claimed, err := c.idempotency.Claim(ctx, printJobConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if !claimed {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	decoded, err := c.decoders.Decode(enums.EventLabelRequested, envelope)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode label request", err)
		return processResult{ack: true}
	}
	payload, ok := decoded.(*payloads.LabelRequestedEvent)
	if !ok {
		c.logg.Error(logCtx, "unexpected label payload", fmt.Errorf("decoded %T", decoded))
		return processResult{ack: true}
	}
	logCtx = c.logg.WithBinID(logCtx, payload.BinID)

	job, err := c.queue(ctx, eventID, payload)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && !pkgerrors.MetadataFor(typed.Code()).Retryable {
			c.logg.Warn(c.logg.WithField(logCtx, "reason", typed.Message()), "label request dropped")
			return processResult{ack: true}
		}
		c.logg.Error(logCtx, "print job creation failed", err)
		if relErr := c.idempotency.Release(ctx, printJobConsumer, eventID); relErr != nil {
			c.logg.Error(logCtx, "release idempotency claim failed", relErr)
		}
		return processResult{nack: true}
	}
	if job == nil {
		c.logg.Info(logCtx, "print job already queued")
		return processResult{ack: true}
	}

	if c.metrics != nil {
		c.metrics.IncPrintJob(string(job.Status))
	}
	c.logg.Info(c.logg.WithJTC(logCtx, job.JTC), "print job queued")
	return processResult{ack: true, job: job}
}

// queue writes the print job for one label request. It returns a nil job when
// the event already produced one.
func (c *Consumer) queue(ctx context.Context, eventID uuid.UUID, payload *payloads.LabelRequestedEvent) (*models.PrintJob, error) {
	bin, err := c.bins.FindBin(ctx, payload.BinID, false)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("bin %s not found", payload.BinID))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bin")
	}
	jtc := payload.JTC
	if jtc == "" {
		jtc = bin.JTCValue()
	}
	if jtc == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("bin %s has no work order", bin.BinID))
	}
	wo, err := workorders.LoadWorkOrder(ctx, c.workOrders, jtc)
	if err != nil {
		return nil, err
	}

	label, err := json.Marshal(Build(*wo, *bin))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode label")
	}
	kind := payload.Kind
	if !kind.IsValid() {
		kind = enums.LabelKindReprint
	}
	copies := payload.Copies
	if copies <= 0 {
		copies = 1
	}
	job := &models.PrintJob{
		EventID: eventID,
		BinID:   bin.BinID,
		JTC:     wo.JTCID,
		Kind:    kind,
		Copies:  copies,
		Label:   label,
		Status:  enums.PrintJobStatusQueued,
	}
	if err := c.repo.Create(ctx, job); err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return nil, nil
		}
		return nil, pkgerrors.WrapStorage(err, "create print job")
	}
	return job, nil
}
