// Package registry fetches vehicle and taxpayer records from the national
// registry's REST endpoints and the owner lookup service.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/errgroup"

	"ecplacas/internal/platform/metrics"
	dErrors "ecplacas/pkg/domain-errors"
)

// SourceSRI is the national fiscal registry, the only source this client
// serves.
const SourceSRI = "sri"

// Fetcher retrieves the full raw payload for a normalized plate from the
// named source.
type Fetcher interface {
	Fetch(ctx context.Context, plateNum, source string) (*RawPayload, error)
}

// Config holds the upstream connection settings.
type Config struct {
	BaseURL    string
	OwnerURL   string
	Timeout    time.Duration
	MaxRetries int
	RetryWait  time.Duration
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
}

// Client talks to the registry with retry on transient failures. Client
// errors from upstream are surfaced immediately; only network faults and
// 5xx responses are retried.
type Client struct {
	http     *resty.Client
	ownerURL string
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// New creates a registry client from cfg.
func New(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}

	c := &Client{ownerURL: cfg.OwnerURL, logger: logger, metrics: cfg.Metrics}

	c.http = resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Accept", "application/json").
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(8 * cfg.RetryWait).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			if err != nil {
				return !errors.Is(err, context.Canceled)
			}
			return resp.StatusCode() >= http.StatusInternalServerError
		}).
		AddRetryHook(func(resp *resty.Response, err error) {
			c.metrics.RecordUpstreamRetry()
			attrs := []any{"attempt", resp.Request.Attempt}
			if err != nil {
				attrs = append(attrs, "error", err)
			} else {
				attrs = append(attrs, "status", resp.StatusCode())
			}
			logger.Warn("retrying registry request", attrs...)
		})

	return c
}

// Fetch pulls the base record for the plate, then fans out to the debt
// rubrics (with their components), the payment history, the exceptional
// payment plan and the owner lookup. The owner and plan services are best
// effort; failures there leave Owner nil and Plan empty.
func (c *Client) Fetch(ctx context.Context, plateNum, source string) (*RawPayload, error) {
	if source != "" && source != SourceSRI {
		return nil, dErrors.Newf(dErrors.CodeBadRequest, "unsupported registry source %q", source)
	}

	base, err := c.fetchBase(ctx, plateNum)
	if err != nil {
		return nil, err
	}

	payload := &RawPayload{
		Base:       *base,
		Components: make(map[int64][]DebtComponent),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rubrics, err := c.fetchRubrics(gctx, base.CodigoVehiculo)
		if err != nil {
			return err
		}
		payload.Rubrics = rubrics
		for _, rubric := range rubrics {
			components, err := c.fetchComponents(gctx, rubric.CodigoRubro)
			if err != nil {
				return err
			}
			payload.Components[rubric.CodigoRubro] = components
		}
		return nil
	})

	g.Go(func() error {
		payments, err := c.fetchPayments(gctx, plateNum)
		if err != nil {
			return err
		}
		payload.Payments = payments
		return nil
	})

	g.Go(func() error {
		plan, err := c.fetchInstallmentPlan(gctx, base.CodigoVehiculo)
		if err != nil {
			c.logger.Info("installment plan lookup failed, continuing without it",
				"plate", plateNum, "error", err)
			return nil
		}
		payload.Plan = plan
		return nil
	})

	g.Go(func() error {
		owner, err := c.fetchOwner(gctx, plateNum)
		if err != nil {
			c.logger.Info("owner lookup failed, continuing without holder data",
				"plate", plateNum, "error", err)
			return nil
		}
		payload.Owner = owner
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return payload, nil
}

func (c *Client) fetchBase(ctx context.Context, plateNum string) (*BaseVehicle, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("numeroPlacaCampvCpn", plateNum).
		Get("/BaseVehiculo/obtenerPorNumeroPlacaOPorNumeroCampvOPorNumeroCpn")
	if err := c.checkResponse(resp, err, "base vehicle"); err != nil {
		return nil, err
	}

	var base BaseVehicle
	if err := json.Unmarshal(resp.Body(), &base); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeDataError, "decode base vehicle response")
	}
	if base.CodError != "" && base.CodError != "0" {
		return nil, dErrors.Newf(dErrors.CodeUpstreamRejected,
			"registry rejected plate %s: %s (%s)", plateNum, base.MensajeError, base.CodError)
	}
	if base.CodigoVehiculo == 0 {
		return nil, dErrors.Newf(dErrors.CodeRecordNotFound, "no registry record for plate %s", plateNum)
	}
	return &base, nil
}

func (c *Client) fetchRubrics(ctx context.Context, vehicleCode int64) ([]DebtRubric, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("codigoVehiculo", strconv.FormatInt(vehicleCode, 10)).
		Get("/ConsultaRubros/obtenerPorCodigoVehiculo")
	if err := c.checkResponse(resp, err, "debt rubrics"); err != nil {
		return nil, err
	}

	var rubrics []DebtRubric
	if err := json.Unmarshal(resp.Body(), &rubrics); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeDataError, "decode debt rubrics response")
	}
	return rubrics, nil
}

func (c *Client) fetchComponents(ctx context.Context, rubricCode int64) ([]DebtComponent, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("codigoConsultaRubro", strconv.FormatInt(rubricCode, 10)).
		Get("/ConsultaComponente/obtenerListaComponentesPorCodigoConsultaRubro")
	if err := c.checkResponse(resp, err, "rubric components"); err != nil {
		return nil, err
	}

	var components []DebtComponent
	if err := json.Unmarshal(resp.Body(), &components); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeDataError, "decode rubric components response")
	}
	return components, nil
}

func (c *Client) fetchPayments(ctx context.Context, plateNum string) ([]Payment, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("placaCampvCpn", plateNum).
		Get("/consultaPagos/obtenerPorPlacaCampvCpn")
	if err := c.checkResponse(resp, err, "payment history"); err != nil {
		return nil, err
	}

	// The endpoint answers either a bare array or an envelope with "data".
	body := resp.Body()
	var payments []Payment
	if err := json.Unmarshal(body, &payments); err == nil {
		return payments, nil
	}
	var envelope paymentsEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeDataError, "decode payment history response")
	}
	return envelope.Data, nil
}

func (c *Client) fetchInstallmentPlan(ctx context.Context, vehicleCode int64) ([]Installment, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("codigo", strconv.FormatInt(vehicleCode, 10)).
		Get("/CuotasImpAmbiental/obtenerDetallePlanExcepcionalPagosPorCodigoVehiculo")
	if err := c.checkResponse(resp, err, "installment plan"); err != nil {
		return nil, err
	}

	var plan []Installment
	if err := json.Unmarshal(resp.Body(), &plan); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeDataError, "decode installment plan response")
	}
	return plan, nil
}

func (c *Client) fetchOwner(ctx context.Context, plateNum string) (*Owner, error) {
	if c.ownerURL == "" {
		return nil, dErrors.New(dErrors.CodeNotFound, "owner lookup not configured")
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"value": plateNum}).
		Post(c.ownerURL)
	if err := c.checkResponse(resp, err, "owner lookup"); err != nil {
		return nil, err
	}

	var envelope ownerEnvelope
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeDataError, "decode owner response")
	}
	if envelope.Data == nil || envelope.Data.Name == "" {
		return nil, dErrors.Newf(dErrors.CodeRecordNotFound, "no owner record for plate %s", plateNum)
	}
	return envelope.Data, nil
}

// checkResponse folds transport errors and upstream statuses into coded
// errors. Retries have already run by the time this sees the response.
func (c *Client) checkResponse(resp *resty.Response, err error, op string) error {
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return dErrors.Wrap(err, dErrors.CodeTimeout, fmt.Sprintf("%s timed out", op))
		}
		return dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, fmt.Sprintf("%s request failed", op))
	}

	status := resp.StatusCode()
	switch {
	case status < http.StatusMultipleChoices:
		return nil
	case status == http.StatusNotFound:
		return dErrors.Newf(dErrors.CodeRecordNotFound, "%s: registry has no record", op)
	case status == http.StatusTooManyRequests:
		return dErrors.Newf(dErrors.CodeRateLimited, "%s: registry throttled the request", op)
	case status >= http.StatusInternalServerError:
		return dErrors.Newf(dErrors.CodeUpstreamUnavailable, "%s: registry returned %d", op, status)
	default:
		return dErrors.Newf(dErrors.CodeUpstreamRejected, "%s: registry returned %d", op, status)
	}
}
