/*
Package factory converts stored target documents to quota.Target and back.

PURPOSE:
  Targets live as documents. Over time three writers produced three shapes:
  the set-target screen writes legacy absolute quotas, the distribute screen
  writes percentage allocations, and an older screen used "allocations" as
  the key. The factory reads all of them into one quota.Target so nothing
  downstream has to care which writer produced a document.

DOCUMENT SHAPE:
  {
    "_id": {"$oid": "64f1..."},
    "manager_id": "64f1...",              // hex string or {"$oid": ...}
    "manager_name": "Mensah",
    "executive_id": "64f1...",
    "branch": "Kumasi",
    "title": "October sales",
    "duration_type": "monthly",
    "start_date": "2025-10-01",           // optional; string or {"$date": ...}
    "end_date": "2025-10-31",
    "product_target": 100,                // number or numeric string
    "cash_target": 10000,
    "customer_target": 50,
    "agent_allocations": [
      {"agent_id": "64f1...", "agent_name": "Ama",
       "product_pct": 40, "cash_pct": 50, "customer_pct": 0}
    ],
    "agents_distribution": [              // legacy absolute quotas
      {"agent_id": "64f1...", "agent_name": "Kofi",
       "product_target": 25, "cash_target": 2500, "customer_target": 12,
       "status": "in_progress"}
    ],
    "created_at": {"$date": "2025-10-01T08:00:00Z"}
  }

  Relaxed extended JSON (the form mongo-driver's bson.MarshalExtJSON
  produces) is accepted for ids, dates and numbers.

LENIENCY:
  Missing numbers are 0. Non-numeric strings are 0. Dates are kept raw and
  parsed later by quota.ResolveWindow. Ids are strict: a malformed id is an
  error, since it cannot be matched against anything.

USAGE:
  f := factory.NewTargetFactory()
  target, err := f.ParseTarget(doc)
  doc, err = f.MarshalTarget(target)

SEE ALSO:
  - quota/types.go: Target and the Allocation union
  - store/sqlite/sqlite.go: Stores target documents through this codec
  - store/mongostore/mongostore.go: Round-trips bson through extended JSON
*/
package factory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/target-engine/quota"
)

// =============================================================================
// DOCUMENT TYPES
// =============================================================================

// TargetJSON is the stored representation of a target.
type TargetJSON struct {
	ID             ObjectIDJSON `json:"_id"`
	ManagerID      ObjectIDJSON `json:"manager_id"`
	ManagerName    string       `json:"manager_name,omitempty"`
	ExecutiveID    ObjectIDJSON `json:"executive_id"`
	Branch         string       `json:"branch,omitempty"`
	Title          string       `json:"title"`
	DurationType   string       `json:"duration_type"`
	StartDate      DateJSON     `json:"start_date"`
	EndDate        DateJSON     `json:"end_date"`
	ProductTarget  NumberJSON   `json:"product_target"`
	CashTarget     NumberJSON   `json:"cash_target"`
	CustomerTarget NumberJSON   `json:"customer_target"`

	AgentAllocations   []PercentageJSON `json:"agent_allocations,omitempty"`
	Allocations        []PercentageJSON `json:"allocations,omitempty"` // older key, same shape
	AgentsDistribution []AbsoluteJSON   `json:"agents_distribution,omitempty"`

	Status         string    `json:"status,omitempty"`
	CreatedAt      DateJSON  `json:"created_at"`
	AllocUpdatedAt *DateJSON `json:"alloc_updated_at,omitempty"`
}

// PercentageJSON is one agent_allocations entry.
type PercentageJSON struct {
	AgentID     ObjectIDJSON `json:"agent_id"`
	AgentName   string       `json:"agent_name,omitempty"`
	ProductPct  NumberJSON   `json:"product_pct"`
	CashPct     NumberJSON   `json:"cash_pct"`
	CustomerPct NumberJSON   `json:"customer_pct"`
}

// AbsoluteJSON is one legacy agents_distribution entry.
type AbsoluteJSON struct {
	AgentID        ObjectIDJSON `json:"agent_id"`
	AgentName      string       `json:"agent_name,omitempty"`
	ProductTarget  NumberJSON   `json:"product_target"`
	CashTarget     NumberJSON   `json:"cash_target"`
	CustomerTarget NumberJSON   `json:"customer_target"`
	Status         string       `json:"status,omitempty"`
}

// =============================================================================
// TARGET FACTORY
// =============================================================================

// TargetFactory converts target documents.
type TargetFactory struct{}

// NewTargetFactory creates a new target factory.
func NewTargetFactory() *TargetFactory {
	return &TargetFactory{}
}

// ParseTarget parses a target document.
func (f *TargetFactory) ParseTarget(data []byte) (quota.Target, error) {
	var tj TargetJSON
	if err := json.Unmarshal(data, &tj); err != nil {
		return quota.Target{}, fmt.Errorf("failed to parse target JSON: %w", err)
	}
	return f.FromJSON(tj), nil
}

// FromJSON converts a TargetJSON to quota.Target.
func (f *TargetFactory) FromJSON(tj TargetJSON) quota.Target {
	t := quota.Target{
		ID:             tj.ID.ID,
		ManagerID:      tj.ManagerID.ID,
		ManagerName:    tj.ManagerName,
		ExecutiveID:    tj.ExecutiveID.ID,
		Branch:         tj.Branch,
		Title:          tj.Title,
		Duration:       quota.Duration(strings.ToLower(strings.TrimSpace(tj.DurationType))),
		StartDate:      tj.StartDate.Raw,
		EndDate:        tj.EndDate.Raw,
		ProductTarget:  tj.ProductTarget.Int(),
		CashTarget:     tj.CashTarget.Decimal,
		CustomerTarget: tj.CustomerTarget.Int(),
		CreatedAt:      tj.CreatedAt.Time(),
	}
	if tj.AllocUpdatedAt != nil {
		at := tj.AllocUpdatedAt.Time()
		t.AllocUpdatedAt = &at
	}

	percentages := tj.AgentAllocations
	if len(percentages) == 0 {
		percentages = tj.Allocations
	}
	for _, pj := range percentages {
		t.Allocations = append(t.Allocations, quota.PercentageAllocation{
			AgentID:   pj.AgentID.ID,
			AgentName: pj.AgentName,
			Split: quota.Split{
				Product:  pj.ProductPct.Decimal,
				Cash:     pj.CashPct.Decimal,
				Customer: pj.CustomerPct.Decimal,
			},
		})
	}
	for _, aj := range tj.AgentsDistribution {
		t.Allocations = append(t.Allocations, quota.AbsoluteAllocation{
			AgentID:        aj.AgentID.ID,
			AgentName:      aj.AgentName,
			ProductTarget:  aj.ProductTarget.Int(),
			CashTarget:     aj.CashTarget.Decimal,
			CustomerTarget: aj.CustomerTarget.Int(),
			Status:         aj.Status,
		})
	}
	return t
}

// ToJSON converts a quota.Target to its document form. Percentage entries
// are written under agent_allocations; legacy entries are preserved under
// agents_distribution.
func (f *TargetFactory) ToJSON(t quota.Target) TargetJSON {
	tj := TargetJSON{
		ID:             ObjectIDJSON{ID: t.ID, Extended: true},
		ManagerID:      ObjectIDJSON{ID: t.ManagerID},
		ManagerName:    t.ManagerName,
		ExecutiveID:    ObjectIDJSON{ID: t.ExecutiveID},
		Branch:         t.Branch,
		Title:          t.Title,
		DurationType:   string(t.Duration),
		StartDate:      DateJSON{Raw: t.StartDate},
		EndDate:        DateJSON{Raw: t.EndDate},
		ProductTarget:  IntNumber(t.ProductTarget),
		CashTarget:     NumberJSON{Decimal: t.CashTarget},
		CustomerTarget: IntNumber(t.CustomerTarget),
		CreatedAt:      TimeDate(t.CreatedAt),
	}
	if t.AllocUpdatedAt != nil {
		at := TimeDate(*t.AllocUpdatedAt)
		tj.AllocUpdatedAt = &at
	}

	for _, p := range t.Percentages() {
		tj.AgentAllocations = append(tj.AgentAllocations, PercentageJSON{
			AgentID:     ObjectIDJSON{ID: p.AgentID},
			AgentName:   p.AgentName,
			ProductPct:  NumberJSON{Decimal: p.Split.Product},
			CashPct:     NumberJSON{Decimal: p.Split.Cash},
			CustomerPct: NumberJSON{Decimal: p.Split.Customer},
		})
	}
	for _, a := range t.Legacy() {
		tj.AgentsDistribution = append(tj.AgentsDistribution, AbsoluteJSON{
			AgentID:        ObjectIDJSON{ID: a.AgentID},
			AgentName:      a.AgentName,
			ProductTarget:  IntNumber(a.ProductTarget),
			CashTarget:     NumberJSON{Decimal: a.CashTarget},
			CustomerTarget: IntNumber(a.CustomerTarget),
			Status:         a.Status,
		})
	}
	return tj
}

// MarshalTarget encodes a target document.
func (f *TargetFactory) MarshalTarget(t quota.Target) ([]byte, error) {
	data, err := json.Marshal(f.ToJSON(t))
	if err != nil {
		return nil, fmt.Errorf("failed to encode target %s: %w", t.ID, err)
	}
	return data, nil
}

// =============================================================================
// FIELD CODECS
// =============================================================================

// ObjectIDJSON accepts "hex", {"$oid": "hex"} or null. Extended controls
// which form is written.
type ObjectIDJSON struct {
	ID       quota.ID
	Extended bool
}

func (o *ObjectIDJSON) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		o.ID = quota.NilID
		return nil
	}

	var hex string
	if len(b) > 0 && b[0] == '{' {
		var wrapped struct {
			OID string `json:"$oid"`
		}
		if err := json.Unmarshal(b, &wrapped); err != nil {
			return err
		}
		hex = wrapped.OID
		o.Extended = true
	} else if err := json.Unmarshal(b, &hex); err != nil {
		return err
	}

	if strings.TrimSpace(hex) == "" {
		o.ID = quota.NilID
		return nil
	}
	id, err := quota.ParseID(hex)
	if err != nil {
		return err
	}
	o.ID = id
	return nil
}

func (o ObjectIDJSON) MarshalJSON() ([]byte, error) {
	if o.ID.IsZero() {
		return []byte("null"), nil
	}
	if o.Extended {
		return json.Marshal(map[string]string{"$oid": o.ID.Hex()})
	}
	return json.Marshal(o.ID.Hex())
}

// NumberJSON accepts a JSON number, a numeric string, null, or an extended
// JSON number wrapper ($numberInt, $numberLong, $numberDouble,
// $numberDecimal). Anything unreadable is 0.
type NumberJSON struct {
	decimal.Decimal
}

// IntNumber wraps an integer count.
func IntNumber(n int64) NumberJSON {
	return NumberJSON{Decimal: decimal.NewFromInt(n)}
}

// Int truncates to a whole count.
func (n NumberJSON) Int() int64 {
	return n.Decimal.IntPart()
}

func (n *NumberJSON) UnmarshalJSON(b []byte) error {
	n.Decimal = decimal.Zero
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}

	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		n.Decimal = parseNumber(s)
	case '{':
		var wrapped map[string]string
		if err := json.Unmarshal(b, &wrapped); err != nil {
			return nil
		}
		for _, key := range []string{"$numberDecimal", "$numberDouble", "$numberLong", "$numberInt"} {
			if s, ok := wrapped[key]; ok {
				n.Decimal = parseNumber(s)
				break
			}
		}
	default:
		n.Decimal = parseNumber(string(b))
	}
	return nil
}

func (n NumberJSON) MarshalJSON() ([]byte, error) {
	return []byte(n.Decimal.String()), nil
}

func parseNumber(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// DateJSON keeps a stored date as its raw string. It accepts a plain string
// or {"$date": ...} in any of the extended JSON forms.
type DateJSON struct {
	Raw string
}

// TimeDate wraps a timestamp in RFC 3339 form.
func TimeDate(t time.Time) DateJSON {
	if t.IsZero() {
		return DateJSON{}
	}
	return DateJSON{Raw: t.UTC().Format(time.RFC3339Nano)}
}

// Time parses the raw value as a timestamp; the zero time when it is not one.
func (d DateJSON) Time() time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, strings.TrimSpace(d.Raw)); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func (d *DateJSON) UnmarshalJSON(b []byte) error {
	d.Raw = ""
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		return json.Unmarshal(b, &d.Raw)
	}
	if b[0] != '{' {
		return nil
	}

	var wrapped struct {
		Date json.RawMessage `json:"$date"`
	}
	if err := json.Unmarshal(b, &wrapped); err != nil || len(wrapped.Date) == 0 {
		return nil
	}

	inner := bytes.TrimSpace(wrapped.Date)
	switch inner[0] {
	case '"':
		return json.Unmarshal(inner, &d.Raw)
	case '{':
		var long struct {
			Long string `json:"$numberLong"`
		}
		if err := json.Unmarshal(inner, &long); err == nil {
			d.Raw = millisToRaw(long.Long)
		}
	default:
		d.Raw = millisToRaw(string(inner))
	}
	return nil
}

func (d DateJSON) MarshalJSON() ([]byte, error) {
	if d.Raw == "" {
		return []byte("null"), nil
	}
	if ts := d.Time(); !ts.IsZero() && len(d.Raw) > len("2006-01-02") {
		return json.Marshal(map[string]string{"$date": d.Raw})
	}
	return json.Marshal(d.Raw)
}

func millisToRaw(s string) string {
	ms, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return ""
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339Nano)
}
