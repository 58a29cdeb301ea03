package quota

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// =============================================================================
// IDENTITY - One canonical identifier for agents, managers, targets, customers
// =============================================================================

// ID is the canonical identity used by the engine. It is a document-store
// ObjectID; stores that persist it in another shape (hex string, extended
// JSON) translate at their own boundary.
type ID primitive.ObjectID

// NilID is the zero identity ("not set").
var NilID ID

// NewID returns a fresh identity.
func NewID() ID { return ID(primitive.NewObjectID()) }

// ParseID parses the 24-character hex form. Anything else is an
// *InvalidIDError, which callers must not confuse with "not found".
func ParseID(s string) (ID, error) {
	s = strings.TrimSpace(s)
	oid, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return NilID, &InvalidIDError{Value: s}
	}
	return ID(oid), nil
}

// MustParseID parses an ID or panics. Use in tests and fixtures.
func MustParseID(s string) ID {
	id, err := ParseID(s)
	if err != nil {
		panic(err)
	}
	return id
}

func (id ID) ObjectID() primitive.ObjectID { return primitive.ObjectID(id) }
func (id ID) Hex() string                  { return primitive.ObjectID(id).Hex() }
func (id ID) String() string               { return id.Hex() }
func (id ID) IsZero() bool                 { return id == NilID }

// MarshalText encodes the hex form; the zero ID encodes as "".
func (id ID) MarshalText() ([]byte, error) {
	if id.IsZero() {
		return []byte{}, nil
	}
	return []byte(id.Hex()), nil
}

func (id *ID) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*id = NilID
		return nil
	}
	parsed, err := ParseID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ContainsID reports whether ids contains id.
func ContainsID(ids []ID, id ID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
