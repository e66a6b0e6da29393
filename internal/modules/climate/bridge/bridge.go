// Package bridge answers climate queries received over MQTT with the same
// service that backs the HTTP API. It never writes to the store.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"climate-server/internal/modules/climate/types"

	"github.com/google/uuid"
)

const (
	QueryPrecipitation = "precipitation"
	QueryStations      = "stations"
	QueryTobs          = "tobs"
	QueryStats         = "stats"

	defaultTimeout = 10 * time.Second
)

// QueryService is the read side shared with the HTTP controller.
type QueryService interface {
	Precipitation(ctx context.Context) (map[string]*float64, error)
	Stations(ctx context.Context) ([]string, error)
	TemperatureObservations(ctx context.Context) ([]*float64, error)
	TemperatureSummary(ctx context.Context, start types.Date, end *types.Date) (types.TemperatureStats, error)
}

type Publisher interface {
	Publish(topic string, payload []byte) error
}

type Subscriber interface {
	Subscribe(topic string, handler func(topic string, payload []byte)) error
}

type Request struct {
	ID      string `json:"id"`
	Query   string `json:"query"`
	Start   string `json:"start,omitempty"`
	End     string `json:"end,omitempty"`
	ReplyTo string `json:"reply_to,omitempty"`
}

// Reply carries either Data or Error. Data keeps empty collections, so an
// empty station list still arrives as [].
type Reply struct {
	ID    string `json:"id"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

type Bridge struct {
	service        QueryService
	publisher      Publisher
	responsePrefix string
	logger         *slog.Logger
	timeout        time.Duration
	baseCtx        context.Context
}

func New(service QueryService, publisher Publisher, responsePrefix string, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		service:        service,
		publisher:      publisher,
		responsePrefix: strings.TrimSuffix(responsePrefix, "/"),
		logger:         logger,
		timeout:        defaultTimeout,
		baseCtx:        context.Background(),
	}
}

// Attach subscribes the bridge to requestTopic. Queries run under ctx, so
// cancelling it aborts in-flight store reads.
func (b *Bridge) Attach(ctx context.Context, sub Subscriber, requestTopic string) error {
	b.baseCtx = ctx
	if err := sub.Subscribe(requestTopic, b.HandleMessage); err != nil {
		return fmt.Errorf("attach bridge to %s: %w", requestTopic, err)
	}
	b.logger.Info("mqtt query bridge attached", "topic", requestTopic, "responses", b.responsePrefix)
	return nil
}

// HandleMessage decodes one request, answers it and publishes the reply.
func (b *Bridge) HandleMessage(topic string, payload []byte) {
	ctx, cancel := context.WithTimeout(b.baseCtx, b.timeout)
	defer cancel()

	req, reply := b.handle(ctx, payload)
	out, err := json.Marshal(reply)
	if err != nil {
		b.logger.Error("mqtt reply encode failed", "id", reply.ID, "error", err)
		out, _ = json.Marshal(Reply{ID: reply.ID, Error: "failed to encode reply"})
	}

	replyTopic := b.replyTopic(req)
	if err := b.publisher.Publish(replyTopic, out); err != nil {
		b.logger.Error("mqtt reply publish failed", "id", req.ID, "topic", replyTopic, "error", err)
		return
	}
	b.logger.Debug("mqtt query answered",
		"id", req.ID,
		"query", req.Query,
		"request_topic", topic,
		"reply_topic", replyTopic,
		"error", reply.Error,
	)
}

// handle always returns a request with an id so the reply can be routed.
func (b *Bridge) handle(ctx context.Context, payload []byte) (Request, Reply) {
	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		req = Request{ID: uuid.NewString()}
		b.logger.Warn("invalid mqtt query payload", "id", req.ID, "error", err)
		return req, Reply{ID: req.ID, Error: "invalid request payload"}
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	data, err := b.answer(ctx, req)
	if err != nil {
		var reqErr requestError
		if !errors.As(err, &reqErr) {
			b.logger.Error("mqtt query failed", "id", req.ID, "query", req.Query, "error", err)
			return req, Reply{ID: req.ID, Error: "query failed"}
		}
		return req, Reply{ID: req.ID, Error: err.Error()}
	}
	return req, Reply{ID: req.ID, Data: data}
}

func (b *Bridge) answer(ctx context.Context, req Request) (any, error) {
	switch req.Query {
	case QueryPrecipitation:
		return b.service.Precipitation(ctx)
	case QueryStations:
		return b.service.Stations(ctx)
	case QueryTobs:
		return b.service.TemperatureObservations(ctx)
	case QueryStats:
		start, end, err := parseRange(req.Start, req.End)
		if err != nil {
			return nil, err
		}
		stats, err := b.service.TemperatureSummary(ctx, start, end)
		if err != nil {
			return nil, err
		}
		return stats.Triple(), nil
	default:
		return nil, requestError(fmt.Sprintf("unknown query %q (expected precipitation, stations, tobs or stats)", req.Query))
	}
}

func (b *Bridge) replyTopic(req Request) string {
	if req.ReplyTo != "" {
		return req.ReplyTo
	}
	return b.responsePrefix + "/" + req.ID
}

// requestError marks problems with the request itself; their text is safe
// to return to the caller.
type requestError string

func (e requestError) Error() string { return string(e) }

func parseRange(rawStart, rawEnd string) (types.Date, *types.Date, error) {
	if rawStart == "" {
		return types.Date{}, nil, requestError("stats query requires 'start'")
	}
	start, err := types.ParseDate(rawStart)
	if err != nil {
		return types.Date{}, nil, requestError(fmt.Sprintf("invalid 'start' date %q (expected YYYY-MM-DD)", rawStart))
	}
	if rawEnd == "" {
		return start, nil, nil
	}
	end, err := types.ParseDate(rawEnd)
	if err != nil {
		return types.Date{}, nil, requestError(fmt.Sprintf("invalid 'end' date %q (expected YYYY-MM-DD)", rawEnd))
	}
	return start, &end, nil
}
