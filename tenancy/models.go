package tenancy

import "time"

// Company is the root tenancy unit. Created by an administrator, immutable
// thereafter except for rename, never hard-deleted while referenced.
type Company struct {
	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Client always belongs to exactly one company.
type Client struct {
	ID           string
	CompanyID    string
	Name         string
	ContactEmail *string
	ContactPhone *string
	IsDeleted    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ContactPerson links a user account to a set of association records. A
// contact person with zero associations has empty scope. Soft-deletable:
// the flag suppresses scope without destroying history.
type ContactPerson struct {
	ID           string
	UserID       string
	IsDeleted    bool
	Associations []Association
	CreatedAt    time.Time
}

// Association is one ContactPersonClientCompany record: a grant to a
// company, a client, or both. When both ids are set the client must belong
// to that company.
type Association struct {
	ID              string
	ContactPersonID string
	CompanyID       *string
	ClientID        *string
	CreatedAt       time.Time
}

// Driver is a driver profile. CompanyID is nullable: unassigned drivers have
// no company scope but keep self-access to their own rides. The Telegram
// fields belong to the external notification collaborator and are carried as
// opaque columns.
type Driver struct {
	ID               string
	UserID           string
	CompanyID        *string
	IsDeleted        bool
	TelegramChatID   *int64
	TelegramUsername *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
