package models

import "time"

// PaymentMethod is how the money was received.
type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "cash"
	PaymentMethodCard     PaymentMethod = "card"
	PaymentMethodTransfer PaymentMethod = "transfer"
	PaymentMethodOther    PaymentMethod = "other"
)

// Payment is an immutable tuition payment against an enrollment. Amount is in the smallest currency unit.
type Payment struct {
	ID                 string        `db:"id" json:"id"`
	EnrollmentID       string        `db:"enrollment_id" json:"enrollment_id"`
	StudentID          string        `db:"student_id" json:"student_id"`
	BranchID           string        `db:"branch_id" json:"branch_id"`
	Amount             int64         `db:"amount" json:"amount"`
	PaymentDate        time.Time     `db:"payment_date" json:"payment_date"`
	Method             PaymentMethod `db:"method" json:"method"`
	ReceiptNumber      *string       `db:"receipt_number" json:"receipt_number,omitempty"`
	Note               *string       `db:"note" json:"note,omitempty"`
	RecordedBy         string        `db:"recorded_by" json:"recorded_by"`
	InactiveEnrollment bool          `db:"inactive_enrollment" json:"inactive_enrollment"`
	CreatedAt          time.Time     `db:"created_at" json:"created_at"`
}

// PaymentFilter scopes payment listings.
type PaymentFilter struct {
	BranchIDs    []string
	StudentID    string
	EnrollmentID string
	From         *time.Time
	To           *time.Time
	Page         int
	PageSize     int
}

// RecordPaymentRequest is the staff payload for recording a payment.
type RecordPaymentRequest struct {
	EnrollmentID  string        `json:"enrollment_id" validate:"required"`
	Amount        int64         `json:"amount"`
	PaymentDate   *time.Time    `json:"payment_date"`
	Method        PaymentMethod `json:"method" validate:"omitempty,oneof=cash card transfer other"`
	ReceiptNumber *string       `json:"receipt_number" validate:"omitempty,max=50"`
	Note          *string       `json:"note" validate:"omitempty,max=500"`
	RecordedBy    string        `json:"-" validate:"required"`
	IP            string        `json:"-"`
	UserAgent     string        `json:"-"`
}

// PaymentReceipt is returned after a payment: the stored row plus the recomputed debt.
type PaymentReceipt struct {
	Payment Payment     `json:"payment"`
	Debt    DebtSummary `json:"debt"`
}
