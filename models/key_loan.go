// models/key_loan.go
package models

import "time"

const KeyTable = "cabinet_keys"
const LoanTable = "cabinet_loans"

type KeyState string

const (
	KeyAvailable KeyState = "available"
	KeyBorrowed  KeyState = "borrowed"
)

type LoanStatus string

const (
	LoanActive   LoanStatus = "active"
	LoanOverdue  LoanStatus = "overdue"
	LoanReturned LoanStatus = "returned"
)

// OpenLoanStatuses are the statuses that count as "currently held".
var OpenLoanStatuses = []LoanStatus{LoanActive, LoanOverdue}

// Key is a physical key in the cabinet.
// State = borrowed iff HolderID != nil iff exactly one open loan exists for it.
type Key struct {
	ID          string    `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string    `gorm:"size:120;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	State       KeyState  `gorm:"size:20;not null;default:'available';index" json:"state"`
	HolderID    *string   `gorm:"type:uuid;index" json:"holderId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Loan is one borrow-to-return episode. Rows are never deleted; once Returned
// the row is frozen.
type Loan struct {
	ID               string     `gorm:"type:uuid;primaryKey" json:"id"`
	KeyID            string     `gorm:"type:uuid;index;not null" json:"keyId"`
	UserID           string     `gorm:"type:uuid;index;not null" json:"userId"`
	Status           LoanStatus `gorm:"size:20;not null;index" json:"status"`
	BorrowedAt       time.Time  `gorm:"index;not null" json:"borrowedAt"`
	ExpectedReturnAt *time.Time `gorm:"index" json:"expectedReturnAt,omitempty"`
	OverdueAt        *time.Time `json:"overdueAt,omitempty"`

	ReturnedAt *time.Time `json:"returnedAt,omitempty"`
	ReturnedBy *string    `gorm:"type:uuid" json:"returnedBy,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Key) TableName() string  { return KeyTable }
func (Loan) TableName() string { return LoanTable }
