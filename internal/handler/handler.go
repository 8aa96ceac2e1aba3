package handler

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/tazle/ruuvitag-mqtt-ble-influxdb/internal/config"
	"github.com/tazle/ruuvitag-mqtt-ble-influxdb/internal/metrics"
	"github.com/tazle/ruuvitag-mqtt-ble-influxdb/internal/model"
	"github.com/tazle/ruuvitag-mqtt-ble-influxdb/internal/validate"
)

type Sink interface {
	Write(ctx context.Context, m model.Measurement) error
}

// RejectSink receives envelopes dropped as anomalous.
type RejectSink interface {
	Reject(ctx context.Context, r model.Rejection) error
}

type NameResolver interface {
	Resolve(mac string) string
}

type TelemetryDecoder interface {
	Decode(format byte, payload []byte) (model.Reading, bool)
}

// MultiSink writes to every sink and joins their errors.
type MultiSink []Sink

func (s MultiSink) Write(ctx context.Context, m model.Measurement) error {
	var errs []error
	for _, sink := range s {
		if err := sink.Write(ctx, m); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type Options struct {
	// TestMode skips sink writes.
	TestMode bool
	// QuietMode skips echoing records to Echo.
	QuietMode bool
	Echo      io.Writer
	Rejects   RejectSink
}

// Handler runs one envelope through parse, frame validation, decoding, record
// building and the sink. Not safe for concurrent use.
type Handler struct {
	logger     *log.Logger
	classifier *validate.Classifier
	decoder    TelemetryDecoder
	names      NameResolver
	sink       Sink
	opts       Options
	now        func() time.Time
}

func New(logger *log.Logger, decoder TelemetryDecoder, names NameResolver, sink Sink, opts Options) *Handler {
	return &Handler{
		logger:     logger,
		classifier: validate.NewClassifier(logger),
		decoder:    decoder,
		names:      names,
		sink:       sink,
		opts:       opts,
		now:        time.Now,
	}
}

func (h *Handler) HandleMessage(ctx context.Context, raw []byte) {
	receivedAt := h.now().UTC()

	adv, err := validate.ParseEnvelope(raw, receivedAt)
	if err != nil {
		metrics.Envelopes.WithLabelValues("invalid_envelope").Inc()
		h.logger.Printf("[error] invalid envelope: %v | message: %s", err, config.Truncate(raw, 512))
		h.reject(ctx, model.Rejection{
			Error:      err.Error(),
			Stage:      "decode_envelope",
			Original:   config.Truncate(raw, 4096),
			ReceivedAt: receivedAt,
		})
		return
	}

	res := h.classifier.Classify(adv.SourceMAC, adv.Payload)
	metrics.Envelopes.WithLabelValues(res.Class.String()).Inc()

	switch res.Class {
	case validate.Candidate:
	case validate.TooShort, validate.TruncatedVendorFrame:
		h.reject(ctx, rejection(adv, "frame_validation", res.Class.String()))
		return
	default:
		return
	}

	reading, ok := h.decoder.Decode(res.Format, res.Payload)
	if !ok {
		metrics.Undecoded.Inc()
		return
	}

	m, err := BuildMeasurement(adv.ReceiverMAC, adv.SourceMAC, reading, h.names.Resolve(adv.SourceMAC), adv.ReceivedAt)
	if err != nil {
		h.logger.Printf("[error] format %d frame from %s: %v", res.Format, adv.SourceMAC, err)
		h.reject(ctx, rejection(adv, "build_measurement", err.Error()))
		return
	}

	if !h.opts.QuietMode && h.opts.Echo != nil {
		h.echo(m)
	}
	if h.opts.TestMode {
		return
	}

	if err := h.sink.Write(ctx, m); err != nil {
		metrics.SinkErrors.Inc()
		h.logger.Printf("[error] sink write failed for %s: %v", adv.SourceMAC, err)
		return
	}
	metrics.RecordsWritten.Inc()
}

func (h *Handler) echo(m model.Measurement) {
	b, err := json.Marshal(m)
	if err != nil {
		h.logger.Printf("[error] echo marshal: %v", err)
		return
	}
	fmt.Fprintf(h.opts.Echo, "%s\n", b)
}

func (h *Handler) reject(ctx context.Context, r model.Rejection) {
	metrics.Rejects.WithLabelValues(r.Stage).Inc()
	if h.opts.Rejects == nil {
		return
	}
	if err := h.opts.Rejects.Reject(ctx, r); err != nil {
		h.logger.Printf("[error] reject write failed (stage=%s): %v", r.Stage, err)
	}
}

func rejection(adv model.Advertisement, stage, reason string) model.Rejection {
	return model.Rejection{
		Error:       reason,
		Stage:       stage,
		SourceMAC:   adv.SourceMAC,
		ReceiverMAC: adv.ReceiverMAC,
		PayloadHex:  hex.EncodeToString(adv.Payload),
		ReceivedAt:  adv.ReceivedAt,
	}
}
