// Package handler exposes the offer listing and quote preview over HTTP.
package handler

import (
	"context"
	"io"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/grocer-offers/internal/domain/offer"
	"github.com/xenking/grocer-offers/internal/domain/pricing"
	"github.com/xenking/grocer-offers/internal/domain/quote"
	"github.com/xenking/grocer-offers/pkg/httpmiddleware"
)

// maxBodySize bounds quote request bodies.
const maxBodySize = 1 << 20

// Quoter prices carts.
type Quoter interface {
	Quote(ctx context.Context, req quote.Request) (pricing.Result, error)
}

// Handler serves the retailer scoped API.
type Handler struct {
	offers offer.Selector
	quotes Quoter
}

// New constructs a Handler.
func New(offers offer.Selector, quotes Quoter) *Handler {
	return &Handler{offers: offers, quotes: quotes}
}

// Mount registers the API routes on r. quoteMiddlewares wrap only the quote
// endpoint, which is where per-retailer rate limiting applies.
func (h *Handler) Mount(r chi.Router, quoteMiddlewares ...func(http.Handler) http.Handler) {
	r.Route("/api/retailers/{retailerID}", func(r chi.Router) {
		r.Get("/offers", h.ListOffers)
		r.With(quoteMiddlewares...).Post("/quote", h.Quote)
	})
}

// ListOffers returns the offers currently live for the retailer, highest
// priority first.
func (h *Handler) ListOffers(w http.ResponseWriter, r *http.Request) {
	ctx := h.withRetailer(r)

	offers, err := h.offers.ActiveOffers(ctx, chi.URLParam(r, "retailerID"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encodeOffers(e, offers)
	writeJSON(w, http.StatusOK, e)
}

// Quote previews the price of a cart with the retailer's live offers.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	ctx := h.withRetailer(r)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		httpmiddleware.WriteError(w, http.StatusBadRequest, "read request body")
		return
	}

	req := quote.Request{RetailerID: chi.URLParam(r, "retailerID")}
	if err := decodeQuoteRequest(body, &req); err != nil {
		httpmiddleware.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	res, err := h.quotes.Quote(ctx, req)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encodeResult(e, res)
	writeJSON(w, http.StatusOK, e)
}

func (h *Handler) withRetailer(r *http.Request) context.Context {
	return zctx.With(r.Context(), zap.String("retailer_id", chi.URLParam(r, "retailerID")))
}

// writeError maps domain errors to HTTP responses.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	var (
		verr *quote.ValidationError
		nf   *quote.ProductNotFoundError
	)
	switch {
	case errors.As(err, &verr):
		writeValidationError(w, verr)
	case errors.As(err, &nf):
		httpmiddleware.WriteError(w, http.StatusUnprocessableEntity, nf.Error())
	case errors.Is(err, offer.ErrRetailerRequired):
		httpmiddleware.WriteError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		zctx.From(ctx).Error("Request failed", zap.Error(err))
		httpmiddleware.WriteError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeValidationError(w http.ResponseWriter, verr *quote.ValidationError) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.ObjStart()
	e.FieldStart("code")
	e.Int(http.StatusUnprocessableEntity)
	e.FieldStart("message")
	e.Str("validation failed")
	e.FieldStart("fields")
	e.ObjStart()
	for _, k := range sortedKeys(verr.Fields) {
		e.FieldStart(k)
		e.Str(verr.Fields[k])
	}
	e.ObjEnd()
	e.ObjEnd()
	writeJSON(w, http.StatusUnprocessableEntity, e)
}

func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
