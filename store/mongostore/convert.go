package mongostore

import (
	"regexp"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/warp/target-engine/quota"
)

// idForms returns both stored representations of an id.
func idForms(id quota.ID) bson.A {
	return bson.A{id.ObjectID(), id.Hex()}
}

func idSet(ids []quota.ID) bson.A {
	out := make(bson.A, 0, 2*len(ids))
	for _, id := range ids {
		out = append(out, idForms(id)...)
	}
	return out
}

// dateRange matches plain dates and timestamps whose calendar day is in w.
func dateRange(w quota.Period) bson.M {
	return bson.M{"$gte": w.Start.String(), "$lte": w.End.String() + "\uffff"}
}

// idOf reads an ObjectID or hex string. Anything else is the nil id.
func idOf(v bson.RawValue) quota.ID {
	if oid, ok := v.ObjectIDOK(); ok {
		return quota.ID(oid)
	}
	if s, ok := v.StringValueOK(); ok {
		if id, err := quota.ParseID(s); err == nil {
			return id
		}
	}
	return quota.NilID
}

func stringOf(v bson.RawValue) string {
	if oid, ok := v.ObjectIDOK(); ok {
		return oid.Hex()
	}
	if s, ok := v.StringValueOK(); ok {
		return s
	}
	return ""
}

// decimalOf reads any numeric BSON value or numeric string. Anything else
// is zero.
func decimalOf(v bson.RawValue) decimal.Decimal {
	d, _ := decimalOK(v)
	return d
}

// decimalOK is decimalOf with ok false when v is absent, null or not
// numeric.
func decimalOK(v bson.RawValue) (decimal.Decimal, bool) {
	if d, ok := v.Decimal128OK(); ok {
		if parsed, err := decimal.NewFromString(d.String()); err == nil {
			return parsed, true
		}
		return decimal.Zero, false
	}
	if f, ok := v.DoubleOK(); ok {
		return decimal.NewFromFloat(f), true
	}
	if n, ok := v.Int32OK(); ok {
		return decimal.NewFromInt32(n), true
	}
	if n, ok := v.Int64OK(); ok {
		return decimal.NewFromInt(n), true
	}
	if s, ok := v.StringValueOK(); ok {
		if parsed, err := decimal.NewFromString(s); err == nil {
			return parsed, true
		}
	}
	return decimal.Zero, false
}

// intOf reads an integral quantity. ok is false when the field is absent.
func intOf(v bson.RawValue) (int64, bool) {
	if v.Type == 0 || v.Type == bson.TypeNull {
		return 0, false
	}
	return decimalOf(v).IntPart(), true
}

func quoteMeta(s string) string {
	return regexp.QuoteMeta(s)
}

// timeOf reads a BSON datetime or an ISO string. Anything else is zero.
func timeOf(v bson.RawValue) time.Time {
	if t, ok := v.TimeOK(); ok {
		return t.UTC()
	}
	if s, ok := v.StringValueOK(); ok {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
