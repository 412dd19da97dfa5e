// Package quote prices a retailer cart: it validates the request, resolves
// catalog products, selects the retailer's live offers and runs the pricing
// engine.
package quote

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/grocer-offers/internal/domain/offer"
	"github.com/xenking/grocer-offers/internal/domain/pricing"
	"github.com/xenking/grocer-offers/internal/domain/product"
)

const instrumentationName = "github.com/xenking/grocer-offers/internal/domain/quote"

// Item is one requested cart line. LineID defaults to ProductID and
// UnitPrice to the catalog price.
type Item struct {
	LineID    string           `json:"lineId"`
	ProductID string           `json:"productId" validate:"required"`
	Quantity  int              `json:"quantity" validate:"gt=0"`
	UnitPrice *decimal.Decimal `json:"unitPrice"`
}

// ID returns the line id used in the result.
func (it Item) ID() string {
	if it.LineID != "" {
		return it.LineID
	}
	return it.ProductID
}

// Request is the input of Service.Quote.
type Request struct {
	RetailerID string `json:"retailerId" validate:"required"`
	Items      []Item `json:"items" validate:"dive"`
}

// Service computes quotes.
type Service struct {
	products product.Repository
	offers   offer.Selector
	engine   *pricing.Engine
	validate *validator.Validate

	tracer  trace.Tracer
	quotes  metric.Int64Counter
	applied metric.Int64Counter
	savings metric.Float64Histogram
}

type options struct {
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
}

// Option configures a Service.
type Option func(*options)

// WithMeterProvider sets the meter provider. Defaults to the global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meterProvider = mp }
}

// WithTracerProvider sets the tracer provider. Defaults to the global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// NewService creates a quote Service.
func NewService(
	products product.Repository,
	offers offer.Selector,
	engine *pricing.Engine,
	opts ...Option,
) (*Service, error) {
	o := options{
		meterProvider:  otel.GetMeterProvider(),
		tracerProvider: otel.GetTracerProvider(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	meter := o.meterProvider.Meter(instrumentationName)
	quotes, err := meter.Int64Counter("offers.quotes",
		metric.WithDescription("Quotes computed, by outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create quotes counter")
	}
	applied, err := meter.Int64Counter("offers.applied",
		metric.WithDescription("Offers that produced an effect on a quote"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create applied counter")
	}
	savings, err := meter.Float64Histogram("offers.savings",
		metric.WithDescription("Total savings per quote"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create savings histogram")
	}

	return &Service{
		products: products,
		offers:   offers,
		engine:   engine,
		validate: newValidator(),
		tracer:   o.tracerProvider.Tracer(instrumentationName),
		quotes:   quotes,
		applied:  applied,
		savings:  savings,
	}, nil
}

// Quote prices the requested cart with the retailer's live offers.
func (s *Service) Quote(ctx context.Context, req Request) (_ pricing.Result, rerr error) {
	req.RetailerID = strings.TrimSpace(req.RetailerID)

	ctx, span := s.tracer.Start(ctx, "quote.Quote", trace.WithAttributes(
		attribute.String("retailer.id", req.RetailerID),
		attribute.Int("quote.lines", len(req.Items)),
	))
	defer span.End()

	outcome := "ok"
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		s.quotes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}()

	if err := s.validateRequest(req); err != nil {
		outcome = "invalid"
		return pricing.Result{}, err
	}
	if len(req.Items) == 0 {
		outcome = "empty"
		return pricing.EmptyResult(), nil
	}

	lines, err := s.resolveLines(ctx, req)
	if err != nil {
		outcome = "error"
		var nf *ProductNotFoundError
		if errors.As(err, &nf) {
			outcome = "not_found"
		}
		return pricing.Result{}, err
	}

	offers, err := s.offers.ActiveOffers(ctx, req.RetailerID)
	if err != nil {
		outcome = "error"
		return pricing.Result{}, errors.Wrap(err, "select offers")
	}
	span.SetAttributes(attribute.Int("quote.offers", len(offers)))

	res := s.engine.Calculate(offers, lines)
	s.record(ctx, res)

	zctx.From(ctx).Debug("Quote computed",
		zap.String("retailer_id", req.RetailerID),
		zap.Int("lines", len(lines)),
		zap.Int("offers", len(offers)),
		zap.Int("applied", len(res.AppliedOffers)),
		zap.Stringer("savings", res.TotalSavings),
	)
	return res, nil
}

func (s *Service) validateRequest(req Request) error {
	fields := make(map[string]string)
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return errors.Wrap(err, "validate request")
		}
		for _, fe := range verrs {
			fields[fieldPath(fe)] = validationMessage(fe)
		}
	}

	seen := make(map[string]struct{}, len(req.Items))
	for i, it := range req.Items {
		if it.UnitPrice != nil && it.UnitPrice.IsNegative() {
			fields[fmt.Sprintf("items[%d].unitPrice", i)] = "must not be negative"
		}
		if it.ProductID == "" {
			continue
		}
		if _, dup := seen[it.ID()]; dup {
			fields[fmt.Sprintf("items[%d].lineId", i)] = "must be unique"
		}
		seen[it.ID()] = struct{}{}
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// resolveLines fetches every product in one batch and builds the cart lines
// in request order.
func (s *Service) resolveLines(ctx context.Context, req Request) ([]pricing.Line, error) {
	ids := make([]string, 0, len(req.Items))
	seen := make(map[string]struct{}, len(req.Items))
	for _, it := range req.Items {
		if _, ok := seen[it.ProductID]; ok {
			continue
		}
		seen[it.ProductID] = struct{}{}
		ids = append(ids, it.ProductID)
	}

	found, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}

	byID := make(map[string]product.Product, len(found))
	for _, p := range found {
		// Products of another retailer are treated as unknown.
		if p.RetailerID == req.RetailerID {
			byID[p.ID] = p
		}
	}

	lines := make([]pricing.Line, len(req.Items))
	for i, it := range req.Items {
		p, ok := byID[it.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: it.ProductID}
		}
		price := p.Price
		if it.UnitPrice != nil {
			price = *it.UnitPrice
		}
		lines[i] = pricing.Line{
			ID:         it.ID(),
			ProductID:  p.ID,
			CategoryID: p.CategoryID,
			BrandID:    p.BrandID,
			Quantity:   it.Quantity,
			UnitPrice:  price,
		}
	}
	return lines, nil
}

func (s *Service) record(ctx context.Context, res pricing.Result) {
	for _, a := range res.AppliedOffers {
		s.applied.Add(ctx, 1, metric.WithAttributes(
			attribute.String("offer_type", string(a.OfferType)),
			attribute.String("benefit_type", string(a.BenefitType)),
		))
	}
	s.savings.Record(ctx, res.TotalSavings.InexactFloat64())
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	return v
}

// fieldPath drops the root struct name from the validator namespace, turning
// Request.items[0].quantity into items[0].quantity.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	}
	return "is invalid"
}
