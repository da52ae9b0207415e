package account

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound indicates no account matches the supplied identifier.
	ErrNotFound = errors.New("account not found")

	// ErrAmbiguousMatch indicates a contact alias resolves to more than one
	// account. Resolution never silently picks a row.
	ErrAmbiguousMatch = errors.New("identifier matches multiple accounts")

	// ErrDuplicateNumber indicates the card number is already registered.
	ErrDuplicateNumber = errors.New("card number already exists")
)

// Account is a balance-holding card account. Balance is stored in integer
// minor units and never goes negative; it is mutated only through the
// ledger's atomic write path.
type Account struct {
	ID        uuid.UUID
	OwnerID   uuid.UUID
	Number    string
	Phone     string
	Balance   int64
	CreatedAt time.Time
}
