package handler

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/grocer-offers/internal/domain/offer"
	"github.com/xenking/grocer-offers/internal/domain/pricing"
	"github.com/xenking/grocer-offers/internal/domain/quote"
)

// decodeQuoteRequest reads {"items":[...]} into req. Unknown keys are
// skipped. Identifiers may be sent as strings or numbers.
func decodeQuoteRequest(body []byte, req *quote.Request) error {
	d := jx.DecodeBytes(body)
	req.Items = []quote.Item{}
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "items":
			if d.Next() == jx.Null {
				return d.Null()
			}
			return d.Arr(func(d *jx.Decoder) error {
				var it quote.Item
				if err := decodeItem(d, &it); err != nil {
					return errors.Wrapf(err, "items[%d]", len(req.Items))
				}
				req.Items = append(req.Items, it)
				return nil
			})
		default:
			return d.Skip()
		}
	})
}

func decodeItem(d *jx.Decoder, it *quote.Item) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "lineId":
			it.LineID, err = decodeID(d)
		case "productId":
			it.ProductID, err = decodeID(d)
		case "quantity":
			it.Quantity, err = d.Int()
		case "unitPrice":
			it.UnitPrice, err = decodeOptionalDecimal(d)
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, string(key))
		}
		return nil
	})
}

func decodeID(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		return n.String(), nil
	case jx.Null:
		return "", d.Null()
	default:
		return d.Str()
	}
}

// decodeOptionalDecimal accepts a number, a numeric string or null.
func decodeOptionalDecimal(d *jx.Decoder) (*decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.Null:
		return nil, d.Null()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return nil, err
		}
		raw = s
	default:
		n, err := d.Num()
		if err != nil {
			return nil, err
		}
		raw = n.String()
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, errors.Wrap(err, "parse decimal")
	}
	return &v, nil
}

func money(e *jx.Encoder, v decimal.Decimal) {
	e.Num(jx.Num(v.StringFixed(2)))
}

func encodeResult(e *jx.Encoder, r pricing.Result) {
	e.ObjStart()
	e.FieldStart("subtotal")
	money(e, r.Subtotal)
	e.FieldStart("discountedTotal")
	money(e, r.DiscountedTotal)
	e.FieldStart("totalSavings")
	money(e, r.TotalSavings)
	e.FieldStart("totalPoints")
	money(e, r.TotalPoints)

	e.FieldStart("appliedOffers")
	e.ArrStart()
	for _, a := range r.AppliedOffers {
		e.ObjStart()
		e.FieldStart("offerId")
		e.Str(a.OfferID)
		e.FieldStart("name")
		e.Str(a.Name)
		e.FieldStart("description")
		e.Str(a.Description)
		e.FieldStart("savings")
		money(e, a.Savings)
		e.FieldStart("benefitType")
		e.Str(string(a.BenefitType))
		e.FieldStart("type")
		e.Str(a.TypeLabel())
		e.FieldStart("offerType")
		e.Str(string(a.OfferType))
		e.ObjEnd()
	}
	e.ArrEnd()

	e.FieldStart("itemDiscounts")
	e.ObjStart()
	for _, it := range r.ItemDiscounts {
		e.FieldStart(it.LineID)
		e.ObjStart()
		e.FieldStart("originalPrice")
		money(e, it.OriginalPrice)
		e.FieldStart("finalPrice")
		money(e, it.FinalPrice)
		e.FieldStart("appliedOffer")
		if it.AppliedOffer == "" {
			e.Null()
		} else {
			e.Str(it.AppliedOffer)
		}
		e.ObjEnd()
	}
	e.ObjEnd()
	e.ObjEnd()
}

func encodeOffers(e *jx.Encoder, offers []offer.Offer) {
	e.ObjStart()
	e.FieldStart("offers")
	e.ArrStart()
	for i := range offers {
		o := &offers[i]
		e.ObjStart()
		e.FieldStart("id")
		e.Str(o.ID)
		e.FieldStart("name")
		e.Str(o.Name)
		e.FieldStart("description")
		e.Str(o.Description)
		e.FieldStart("type")
		e.Str(o.Type.Label())
		e.FieldStart("offerType")
		e.Str(string(o.Type))
		e.FieldStart("benefitType")
		e.Str(string(o.BenefitType))
		e.FieldStart("priority")
		e.Int(o.Priority)
		e.FieldStart("isStackable")
		e.Bool(o.IsStackable)
		e.FieldStart("startDate")
		e.Str(o.StartDate.UTC().Format(time.RFC3339))
		e.FieldStart("endDate")
		if o.EndDate == nil {
			e.Null()
		} else {
			e.Str(o.EndDate.UTC().Format(time.RFC3339))
		}
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
}
