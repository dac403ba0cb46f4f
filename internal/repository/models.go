package repository

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID  `json:"id"`
	Email        string     `json:"email"`
	FullName     string     `json:"full_name"`
	PhoneNumber  string     `json:"phone_number"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"role"`
	IsActive     bool       `json:"is_active"`
	ReferralCode string     `json:"referral_code"`
	ReferredBy   *uuid.UUID `json:"referred_by,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type Wallet struct {
	UserID        uuid.UUID `json:"user_id"`
	Balance       int64     `json:"balance_cents"`
	RentalBalance int64     `json:"rental_balance_cents"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type WalletEntry struct {
	ID            int64     `json:"id"`
	UserID        uuid.UUID `json:"user_id"`
	MovementID    uuid.UUID `json:"movement_id"`
	Bucket        string    `json:"bucket"`
	Kind          string    `json:"kind"`
	Amount        int64     `json:"amount_cents"`
	ReferenceType string    `json:"reference_type"`
	ReferenceID   uuid.UUID `json:"reference_id"`
	CreatedAt     time.Time `json:"created_at"`
}

type Payment struct {
	ID                uuid.UUID  `json:"id"`
	UserID            uuid.UUID  `json:"user_id"`
	Method            string     `json:"method"`
	Currency          string     `json:"currency"`
	Amount            int64      `json:"amount_cents"`
	PhoneNumber       string     `json:"phone_number,omitempty"`
	Status            string     `json:"status"`
	CheckoutRequestID *string    `json:"checkout_request_id,omitempty"`
	MerchantRequestID *string    `json:"merchant_request_id,omitempty"`
	MpesaReceipt      *string    `json:"mpesa_receipt,omitempty"`
	ResultCode        *int32     `json:"result_code,omitempty"`
	ResultDesc        *string    `json:"result_desc,omitempty"`
	RentalID          *uuid.UUID `json:"rental_id,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

type Rental struct {
	ID                  uuid.UUID  `json:"id"`
	UserID              uuid.UUID  `json:"user_id"`
	Currency            string     `json:"currency"`
	Amount              int64      `json:"amount_cents"`
	ExpectedReturn      int64      `json:"expected_return_cents"`
	Status              string     `json:"status"`
	DurationDays        int32      `json:"duration_days"`
	EndDate             time.Time  `json:"end_date"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
	ReferrerID          *uuid.UUID `json:"referrer_id,omitempty"`
	ReferralRewardGiven bool       `json:"referral_reward_given"`
	PaymentID           *uuid.UUID `json:"payment_id,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

type Referral struct {
	ID            uuid.UUID  `json:"id"`
	ReferrerID    uuid.UUID  `json:"referrer_id"`
	ReferredID    *uuid.UUID `json:"referred_id,omitempty"`
	ReferredEmail string     `json:"referred_email"`
	ReferredName  string     `json:"referred_name"`
	Status        string     `json:"status"`
	Reward        int64      `json:"reward_cents"`
	RentalID      *uuid.UUID `json:"rental_id,omitempty"`
	RewardedAt    *time.Time `json:"rewarded_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type Withdrawal struct {
	ID           uuid.UUID  `json:"id"`
	UserID       uuid.UUID  `json:"user_id"`
	MobileNumber string     `json:"mobile_number"`
	Amount       int64      `json:"amount_cents"`
	Status       string     `json:"status"`
	ProcessedBy  *uuid.UUID `json:"processed_by,omitempty"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type KycProfile struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"user_id"`
	FullName    string     `json:"full_name"`
	Email       string     `json:"email"`
	PhoneNumber string     `json:"phone_number"`
	NationalID  string     `json:"national_id"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	Address     string     `json:"address"`
	IsVerified  bool       `json:"is_verified"`
	VerifiedAt  *time.Time `json:"verified_at,omitempty"`
	SubmittedAt time.Time  `json:"submitted_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type SupportMessage struct {
	ID        uuid.UUID  `json:"id"`
	UserID    *uuid.UUID `json:"user_id,omitempty"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Message   string     `json:"message"`
	Reply     string     `json:"reply"`
	IsRead    bool       `json:"is_read"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type SystemSettings struct {
	MaintenanceMode    bool      `json:"maintenance_mode"`
	EmailNotifications bool      `json:"email_notifications"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type UserSession struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	UserAgent string     `json:"user_agent"`
	IPAddress string     `json:"ip_address"`
	LoginAt   time.Time  `json:"login_at"`
	LogoutAt  *time.Time `json:"logout_at,omitempty"`
}

type AuditLog struct {
	ID         int64      `json:"id"`
	EntityType string     `json:"entity_type"`
	EntityID   uuid.UUID  `json:"entity_id"`
	ActorID    *uuid.UUID `json:"actor_id,omitempty"`
	Action     string     `json:"action"`
	PrevState  *string    `json:"prev_state,omitempty"`
	NextState  *string    `json:"next_state,omitempty"`
	Metadata   []byte     `json:"metadata,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

type IdempotencyKey struct {
	IdempotencyKey string
	RequestHash    string
	Method         string
	Path           string
	ResponseStatus int32
	ResponseBody   []byte
	ContentType    string
	InProgress     bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
