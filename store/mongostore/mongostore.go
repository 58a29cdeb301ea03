/*
Package mongostore provides a MongoDB-backed implementation of quota.Store.

PURPOSE:
  Reads the operational collections the targets were first written to:
  users, targets, payments, customers (with embedded purchase lists) and
  agent_commissions. Documents written by older tooling keep their shape;
  this package translates them at the boundary.

COLLECTIONS:
  users:             {_id, name, role, manager_id, branch, image_url}
  targets:           target documents, decoded through factory.TargetFactory
  payments:          {_id, agent_id, amount, payment_type, date, ...}
  customers:         {_id, name, agent_id, purchases: [{agent_id, quantity, ...}]}
  agent_commissions: {scope: "GLOBAL", product_commission_pct}
                     {scope: "AGENT", agent_id, product_commission_pct}

IDENTITY:
  Reference fields hold either an ObjectID or its hex string depending on
  which writer produced the document. Every filter matches both forms with
  $in and every id read back goes through idOf.

SEE ALSO:
  - quota/store.go: Interface definitions
  - store/sqlite: SQLite implementation of the same contract
*/
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/warp/target-engine/factory"
	"github.com/warp/target-engine/quota"
)

const (
	usersCollection       = "users"
	targetsCollection     = "targets"
	paymentsCollection    = "payments"
	customersCollection   = "customers"
	commissionsCollection = "agent_commissions"

	globalScope = "GLOBAL"
	agentScope  = "AGENT"
)

// allocationKeys are the document fields an agent can be listed under.
var allocationKeys = []string{"agent_allocations", "allocations", "agents_distribution"}

// Store implements quota.Store on a MongoDB database.
type Store struct {
	client  *mongo.Client
	db      *mongo.Database
	targets *factory.TargetFactory
	now     func() time.Time
}

var _ quota.Store = (*Store)(nil)

// New connects to uri and verifies the connection.
func New(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}
	return &Store{
		client:  client,
		db:      client.Database(database),
		targets: factory.NewTargetFactory(),
		now:     time.Now,
	}, nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// =============================================================================
// DOCUMENT SHAPES
// =============================================================================

type userDoc struct {
	ID        primitive.ObjectID `bson:"_id"`
	Name      string             `bson:"name"`
	Role      string             `bson:"role"`
	ManagerID bson.RawValue      `bson:"manager_id,omitempty"`
	Branch    string             `bson:"branch"`
	ImageURL  string             `bson:"image_url"`
}

type paymentDoc struct {
	ID         bson.RawValue `bson:"_id"`
	AgentID    bson.RawValue `bson:"agent_id"`
	ManagerID  bson.RawValue `bson:"manager_id,omitempty"`
	CustomerID bson.RawValue `bson:"customer_id,omitempty"`
	Method     string        `bson:"method"`
	Amount     bson.RawValue `bson:"amount"`
	Type       string        `bson:"payment_type"`
	Date       string        `bson:"date"`
	CreatedAt  bson.RawValue `bson:"created_at,omitempty"`
}

// purchaseRow is one unwound purchase line. Lines carry the product as a
// sub-document; a few early lines were written flat.
type purchaseRow struct {
	CustomerID primitive.ObjectID `bson:"_id"`
	AgentID    bson.RawValue      `bson:"agent_id"`
	Line       struct {
		AgentID bson.RawValue `bson:"agent_id,omitempty"`
		Product struct {
			Name     string        `bson:"name"`
			Quantity bson.RawValue `bson:"quantity,omitempty"`
		} `bson:"product"`
		ProductName  string        `bson:"product_name,omitempty"`
		Quantity     bson.RawValue `bson:"quantity,omitempty"`
		PurchaseDate string        `bson:"purchase_date"`
	} `bson:"purchases"`
}

func (r purchaseRow) record() quota.PurchaseRecord {
	rec := quota.PurchaseRecord{
		CustomerID:      quota.ID(r.CustomerID),
		CustomerAgentID: idOf(r.AgentID),
		Line: quota.PurchaseLine{
			ProductName:  r.Line.Product.Name,
			PurchaseDate: r.Line.PurchaseDate,
		},
	}
	if rec.Line.ProductName == "" {
		rec.Line.ProductName = r.Line.ProductName
	}
	if id := idOf(r.Line.AgentID); !id.IsZero() {
		rec.Line.AgentID = &id
	}
	if q, ok := intOf(r.Line.Product.Quantity); ok {
		rec.Line.Quantity = &q
	} else if q, ok := intOf(r.Line.Quantity); ok {
		rec.Line.Quantity = &q
	}
	return rec
}

type commissionDoc struct {
	Scope   string        `bson:"scope"`
	AgentID bson.RawValue `bson:"agent_id,omitempty"`
	Pct     bson.RawValue `bson:"product_commission_pct"`
}

// =============================================================================
// ROSTER (quota.Roster interface)
// =============================================================================

func (s *Store) SaveUser(ctx context.Context, u quota.User) error {
	doc := bson.M{
		"_id":       u.ID.ObjectID(),
		"name":      u.Name,
		"role":      string(u.Role),
		"branch":    u.Branch,
		"image_url": u.ImageURL,
	}
	if !u.ManagerID.IsZero() {
		doc["manager_id"] = u.ManagerID.ObjectID()
	}
	_, err := s.db.Collection(usersCollection).ReplaceOne(ctx,
		bson.M{"_id": u.ID.ObjectID()}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

func (s *Store) User(ctx context.Context, id quota.ID) (quota.User, error) {
	var doc userDoc
	err := s.db.Collection(usersCollection).FindOne(ctx, bson.M{"_id": id.ObjectID()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return quota.User{}, quota.ErrAgentNotFound
	}
	if err != nil {
		return quota.User{}, fmt.Errorf("failed to load user: %w", err)
	}
	return doc.user(), nil
}

func (s *Store) AgentsOf(ctx context.Context, manager quota.ID) ([]quota.User, error) {
	return s.Users(ctx, quota.UserFilter{Role: quota.RoleAgent, ManagerID: manager})
}

// Users lists users matching the filter ordered by name. A manager name
// filter resolves matching managers first.
func (s *Store) Users(ctx context.Context, f quota.UserFilter) ([]quota.User, error) {
	filter := bson.M{}
	if f.Role != "" {
		filter["role"] = string(f.Role)
	}
	if f.Branch != "" {
		filter["branch"] = primitive.Regex{Pattern: "^" + quoteMeta(f.Branch) + "$", Options: "i"}
	}

	var managerForms bson.A
	if !f.ManagerID.IsZero() {
		managerForms = idForms(f.ManagerID)
	}
	if f.ManagerNameLike != "" {
		managers, err := s.findUsers(ctx, bson.M{
			"role": string(quota.RoleManager),
			"name": primitive.Regex{Pattern: quoteMeta(f.ManagerNameLike), Options: "i"},
		})
		if err != nil {
			return nil, err
		}
		var byName bson.A
		for _, m := range managers {
			if f.ManagerID.IsZero() || m.ID == f.ManagerID {
				byName = append(byName, idForms(m.ID)...)
			}
		}
		if len(byName) == 0 {
			return nil, nil
		}
		managerForms = byName
	}
	if managerForms != nil {
		filter["manager_id"] = bson.M{"$in": managerForms}
	}

	return s.findUsers(ctx, filter)
}

func (s *Store) findUsers(ctx context.Context, filter bson.M) ([]quota.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.db.Collection(usersCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	var docs []userDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}

	users := make([]quota.User, 0, len(docs))
	for _, d := range docs {
		users = append(users, d.user())
	}
	return users, nil
}

func (d userDoc) user() quota.User {
	return quota.User{
		ID:        quota.ID(d.ID),
		Name:      d.Name,
		Role:      quota.Role(d.Role),
		ManagerID: idOf(d.ManagerID),
		Branch:    d.Branch,
		ImageURL:  d.ImageURL,
	}
}

// =============================================================================
// TARGETS (quota.TargetSource interface)
// =============================================================================

func (s *Store) SaveTarget(ctx context.Context, t quota.Target) error {
	data, err := s.targets.MarshalTarget(t)
	if err != nil {
		return err
	}
	var doc bson.D
	if err := bson.UnmarshalExtJSON(data, false, &doc); err != nil {
		return fmt.Errorf("failed to encode target: %w", err)
	}
	_, err = s.db.Collection(targetsCollection).ReplaceOne(ctx,
		bson.M{"_id": t.ID.ObjectID()}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save target: %w", err)
	}
	return nil
}

func (s *Store) Target(ctx context.Context, id quota.ID) (quota.Target, error) {
	raw, err := s.db.Collection(targetsCollection).FindOne(ctx, bson.M{"_id": id.ObjectID()}).Raw()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return quota.Target{}, quota.ErrTargetNotFound
	}
	if err != nil {
		return quota.Target{}, fmt.Errorf("failed to load target: %w", err)
	}
	return s.decodeTarget(raw)
}

func (s *Store) TargetsForAgent(ctx context.Context, agent quota.ID) ([]quota.Target, error) {
	or := bson.A{}
	for _, key := range allocationKeys {
		or = append(or, bson.M{key + ".agent_id": bson.M{"$in": idForms(agent)}})
	}
	return s.findTargets(ctx, bson.M{"$or": or})
}

func (s *Store) TargetsForManager(ctx context.Context, manager quota.ID) ([]quota.Target, error) {
	return s.findTargets(ctx, bson.M{"manager_id": bson.M{"$in": idForms(manager)}})
}

// SetAllocations rewrites the percentage allocations of a target. Last
// write wins.
func (s *Store) SetAllocations(ctx context.Context, target quota.ID, allocs []quota.PercentageAllocation) error {
	t, err := s.Target(ctx, target)
	if err != nil {
		return err
	}
	t = t.WithPercentages(allocs)
	now := s.now().UTC()
	t.AllocUpdatedAt = &now
	return s.SaveTarget(ctx, t)
}

func (s *Store) findTargets(ctx context.Context, filter bson.M) ([]quota.Target, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := s.db.Collection(targetsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query targets: %w", err)
	}
	defer cursor.Close(ctx)

	var targets []quota.Target
	for cursor.Next(ctx) {
		t, err := s.decodeTarget(cursor.Current)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, cursor.Err()
}

// decodeTarget goes through relaxed extended JSON so one codec serves both
// stores.
func (s *Store) decodeTarget(raw bson.Raw) (quota.Target, error) {
	data, err := bson.MarshalExtJSON(raw, false, false)
	if err != nil {
		return quota.Target{}, fmt.Errorf("failed to decode target: %w", err)
	}
	return s.targets.ParseTarget(data)
}

// =============================================================================
// RECORDS (quota.PaymentSource, quota.PurchaseSource interfaces)
// =============================================================================

func (s *Store) RecordPayment(ctx context.Context, p quota.Payment) error {
	amount, err := primitive.ParseDecimal128(p.Amount.String())
	if err != nil {
		return fmt.Errorf("failed to encode amount: %w", err)
	}
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	doc := bson.M{
		"agent_id":     p.AgentID.ObjectID(),
		"method":       p.Method,
		"amount":       amount,
		"payment_type": string(p.Type),
		"date":         p.Date,
		"created_at":   createdAt.UTC(),
	}
	if p.ID != "" {
		doc["_id"] = p.ID
	}
	if !p.ManagerID.IsZero() {
		doc["manager_id"] = p.ManagerID.ObjectID()
	}
	if !p.CustomerID.IsZero() {
		doc["customer_id"] = p.CustomerID.ObjectID()
	}

	if _, err := s.db.Collection(paymentsCollection).InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to record payment: %w", err)
	}
	return nil
}

// Payments returns the agents' cash transactions dated inside w. Excluded
// types are dropped after decoding since stored casing varies.
func (s *Store) Payments(ctx context.Context, agents []quota.ID, w quota.Period) ([]quota.Payment, error) {
	if len(agents) == 0 {
		return nil, nil
	}
	filter := bson.M{
		"agent_id": bson.M{"$in": idSet(agents)},
		"date":     dateRange(w),
	}
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "created_at", Value: 1}})
	cursor, err := s.db.Collection(paymentsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	var docs []paymentDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode payments: %w", err)
	}

	payments := make([]quota.Payment, 0, len(docs))
	for _, d := range docs {
		p := quota.Payment{
			ID:         stringOf(d.ID),
			AgentID:    idOf(d.AgentID),
			ManagerID:  idOf(d.ManagerID),
			CustomerID: idOf(d.CustomerID),
			Method:     d.Method,
			Amount:     decimalOf(d.Amount),
			Type:       quota.PaymentType(d.Type),
			Date:       d.Date,
			CreatedAt:  timeOf(d.CreatedAt),
		}
		if !p.Type.CountsAsCash() {
			continue
		}
		payments = append(payments, p)
	}
	return payments, nil
}

func (s *Store) SaveCustomer(ctx context.Context, c quota.Customer) error {
	set := bson.M{"name": c.Name, "agent_id": c.AgentID.ObjectID()}
	if !c.ManagerID.IsZero() {
		set["manager_id"] = c.ManagerID.ObjectID()
	}
	_, err := s.db.Collection(customersCollection).UpdateOne(ctx,
		bson.M{"_id": c.ID.ObjectID()},
		bson.M{"$set": set, "$setOnInsert": bson.M{"purchases": bson.A{}}},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save customer: %w", err)
	}
	return nil
}

func (s *Store) AddPurchase(ctx context.Context, customer quota.ID, line quota.PurchaseLine) error {
	product := bson.M{"name": line.ProductName}
	if line.Quantity != nil {
		product["quantity"] = *line.Quantity
	}
	item := bson.M{"product": product, "purchase_date": line.PurchaseDate}
	if line.AgentID != nil {
		item["agent_id"] = line.AgentID.ObjectID()
	}

	res, err := s.db.Collection(customersCollection).UpdateOne(ctx,
		bson.M{"_id": customer.ObjectID()},
		bson.M{"$push": bson.M{"purchases": item}})
	if err != nil {
		return fmt.Errorf("failed to add purchase: %w", err)
	}
	if res.MatchedCount == 0 {
		return quota.ErrCustomerNotFound
	}
	return nil
}

// PurchaseLines unwinds the purchase lists of customers rooted at any of
// the agents and keeps the lines dated inside w.
func (s *Store) PurchaseLines(ctx context.Context, agents []quota.ID, w quota.Period) ([]quota.PurchaseRecord, error) {
	if len(agents) == 0 {
		return nil, nil
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"agent_id": bson.M{"$in": idSet(agents)}}}},
		{{Key: "$unwind", Value: "$purchases"}},
		{{Key: "$match", Value: bson.M{"purchases.purchase_date": dateRange(w)}}},
		{{Key: "$project", Value: bson.M{"agent_id": 1, "purchases": 1}}},
		{{Key: "$sort", Value: bson.M{"purchases.purchase_date": 1}}},
	}
	cursor, err := s.db.Collection(customersCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchases: %w", err)
	}
	var rows []purchaseRow
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode purchases: %w", err)
	}

	records := make([]quota.PurchaseRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.record())
	}
	return records, nil
}

// =============================================================================
// COMMISSION POLICY (quota.CommissionSource interface)
// =============================================================================

func (s *Store) CommissionPolicy(ctx context.Context) (quota.CommissionPolicy, error) {
	cursor, err := s.db.Collection(commissionsCollection).Find(ctx, bson.M{})
	if err != nil {
		return quota.CommissionPolicy{}, fmt.Errorf("failed to query commission policy: %w", err)
	}
	var docs []commissionDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return quota.CommissionPolicy{}, fmt.Errorf("failed to decode commission policy: %w", err)
	}

	return policyOf(docs), nil
}

// policyOf folds commission documents into a policy. A document without a
// numeric pct is treated as absent, so the agent falls back to the global
// rate.
func policyOf(docs []commissionDoc) quota.CommissionPolicy {
	policy := quota.CommissionPolicy{Overrides: make(map[quota.ID]decimal.Decimal)}
	for _, d := range docs {
		rate, ok := decimalOK(d.Pct)
		if !ok {
			continue
		}
		if d.Scope == globalScope {
			policy.Global = &rate
			continue
		}
		if id := idOf(d.AgentID); !id.IsZero() {
			policy.Overrides[id] = rate
		}
	}
	return policy
}

func (s *Store) SetGlobalCommission(ctx context.Context, pct decimal.Decimal) error {
	return s.upsertCommission(ctx, bson.M{"scope": globalScope}, pct)
}

func (s *Store) SetAgentCommission(ctx context.Context, agent quota.ID, pct decimal.Decimal) error {
	return s.upsertCommission(ctx, bson.M{"scope": agentScope, "agent_id": agent.ObjectID()}, pct)
}

func (s *Store) upsertCommission(ctx context.Context, filter bson.M, pct decimal.Decimal) error {
	value, err := primitive.ParseDecimal128(pct.String())
	if err != nil {
		return fmt.Errorf("failed to encode commission: %w", err)
	}
	_, err = s.db.Collection(commissionsCollection).UpdateOne(ctx, filter,
		bson.M{"$set": bson.M{"product_commission_pct": value, "updated_at": s.now().UTC()}},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save commission policy: %w", err)
	}
	return nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears every collection (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	for _, name := range []string{usersCollection, targetsCollection, paymentsCollection, customersCollection, commissionsCollection} {
		if _, err := s.db.Collection(name).DeleteMany(ctx, bson.M{}); err != nil {
			return err
		}
	}
	return nil
}
