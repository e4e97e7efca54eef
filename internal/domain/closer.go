package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/spec-kit/commission-service/pkg/util/errorutil"
)

// CloserStatus enumerates closer availability.
type CloserStatus string

const (
	CloserStatusActive   CloserStatus = "ACTIVE"
	CloserStatusInactive CloserStatus = "INACTIVE"
)

// Closer finalizes deals referenced by sales.
type Closer struct {
	ID             string
	Code           string
	Name           string
	Email          string
	Phone          string
	CommissionRate decimal.Decimal
	Status         CloserStatus
	Notes          string
	Counters
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsActive reports whether the closer may be referenced by new sales.
func (c *Closer) IsActive() bool {
	return c.Status == CloserStatusActive
}

// CloserKind tags the CloserReference variant.
type CloserKind string

const (
	CloserKindRegistered CloserKind = "REGISTERED"
	CloserKindAdhoc      CloserKind = "ADHOC"
)

// CloserReference is either a registered closer (by id) or a free-text name.
// Name also carries the registered closer's display name once resolved.
type CloserReference struct {
	Kind CloserKind
	ID   string
	Name string
}

// RegisteredCloser references a closer from the registry.
func RegisteredCloser(id string) CloserReference {
	return CloserReference{Kind: CloserKindRegistered, ID: strings.TrimSpace(id)}
}

// AdhocCloser references a closer that only exists as a name.
func AdhocCloser(name string) CloserReference {
	return CloserReference{Kind: CloserKindAdhoc, Name: strings.TrimSpace(name)}
}

// CloserReferenceFrom builds a reference from the two optional API fields.
// Exactly one of them must be set.
func CloserReferenceFrom(closerID, closerName *string) (CloserReference, error) {
	id := trimmed(closerID)
	name := trimmed(closerName)
	switch {
	case id != "" && name != "":
		return CloserReference{}, apperrors.NewValidationError("provide either closer_id or closer_name, not both", nil)
	case id != "":
		return RegisteredCloser(id), nil
	case name != "":
		return AdhocCloser(name), nil
	default:
		return CloserReference{}, apperrors.NewValidationError("closer_id or closer_name is required", nil)
	}
}

// Validate checks that the variant carries its payload.
func (r CloserReference) Validate() error {
	switch r.Kind {
	case CloserKindRegistered:
		if strings.TrimSpace(r.ID) == "" {
			return apperrors.NewValidationError("closer_id is required", nil)
		}
	case CloserKindAdhoc:
		if strings.TrimSpace(r.Name) == "" {
			return apperrors.NewValidationError("closer_name is required", nil)
		}
	default:
		return apperrors.NewValidationError("closer_id or closer_name is required", nil)
	}
	return nil
}

// RegisteredID returns the closer id for registered references.
func (r CloserReference) RegisteredID() (string, bool) {
	if r.Kind != CloserKindRegistered {
		return "", false
	}
	return r.ID, true
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
