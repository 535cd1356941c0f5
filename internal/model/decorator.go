package model

import "time"

// Application states of a decorator.
const (
	ApplicationPending  = "pending"
	ApplicationApproved = "approved"
	ApplicationRejected = "rejected"
)

// Account states of a decorator.  Disabling is logical; decorator records
// are never hard-deleted.
const (
	AccountActive   = "active"
	AccountDisabled = "disabled"
)

// ServiceLocation is the area a decorator works in.
type ServiceLocation struct {
	City    string `json:"city"`
	Address string `json:"address,omitempty"`
}

// Decorator is a vendor account layered on top of a user.  The
// AssignedBookings and FinishedProjectIDs sets are stored in child tables
// (decorator_bookings and decorator_finished) but belong to this record:
// they are only ever mutated together with the decorator row.
//
// Fields:
//  ID                 – record identifier (uuid).
//  Email              – unique decorator email (matches the user email).
//  Name, Phone, PhotoURL, Bio – profile.
//  ServiceLocation    – city (indexed) and address.
//  Specialization     – free-form speciality (wedding, birthday, ...).
//  ExperienceYears    – self-declared experience.
//  ApplicationStatus  – pending | approved | rejected.
//  IsVerified         – true once approved.
//  AccountStatus      – active | disabled.
//  IsAvailable        – false whenever the decorator holds work.
//  CurrentProject     – booking the decorator is actively planning.
//  AssignedBookings   – bookings assigned and not yet finished.
//  FinishedProjectIDs – bookings completed by this decorator.
type Decorator struct {
	ID                 string          `json:"_id"`
	Email              string          `json:"decoratorEmail"`
	Name               string          `json:"name"`
	Phone              string          `json:"phone,omitempty"`
	PhotoURL           string          `json:"photoURL,omitempty"`
	Bio                string          `json:"bio,omitempty"`
	ServiceLocation    ServiceLocation `json:"serviceLocation"`
	Specialization     string          `json:"specialization"`
	ExperienceYears    int             `json:"experienceYears"`
	ApplicationStatus  string          `json:"applicationStatus"`
	IsVerified         bool            `json:"isVerified"`
	AccountStatus      string          `json:"accountStatus"`
	IsAvailable        bool            `json:"isAvailable"`
	CurrentProject     *string         `json:"currentProject"`
	AssignedBookings   []string        `json:"assignedBookings"`
	FinishedProjectIDs []string        `json:"finishedProjectIDs"`
	ApprovedAt         *time.Time      `json:"approvedAt,omitempty"`
	RejectedAt         *time.Time      `json:"rejectedAt,omitempty"`
	DisabledAt         *time.Time      `json:"disabledAt,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// HoldsBooking reports whether bookingID is in the decorator's assigned set.
func (d *Decorator) HoldsBooking(bookingID string) bool {
	return contains(d.AssignedBookings, bookingID)
}

// DecoratorFilter narrows a decorator listing.  Nil / empty fields do not
// constrain the result.
type DecoratorFilter struct {
	ApplicationStatus string
	IsAvailable       *bool
	City              string
	Specialization    string
}

// Assignment is one (decorator, booking) pair as seen from one side of the
// decorator/booking link.  Status carries the booking status when the pair
// is read from the booking side.
type Assignment struct {
	DecoratorID string
	BookingID   string
	Status      string
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
