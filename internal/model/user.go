package model

import "time"

// Roles a user record can carry.  A user starts as a client; the decorator
// role is only granted when a decorator application is approved.
const (
	RoleClient    = "client"
	RoleDecorator = "decorator"
	RoleAdmin     = "admin"
)

// User represents an identity anchor stored in the `users` collection.
// Users are created on first sign-in and mutated only when a decorator
// application is approved (role flips and DecoratorID is stamped) or when
// an administrator changes the role.
//
// Fields:
//  ID          – record identifier (uuid).
//  Email       – unique, lower-cased principal email.
//  Name        – display name reported by the identity provider.
//  PhotoURL    – avatar reported by the identity provider.
//  Role        – client | decorator | admin.
//  DecoratorID – back-reference to the decorator record once approved.
//  CreatedAt   – timestamp of first sign-in.
//  UpdatedAt   – timestamp of the last mutation.
type User struct {
	ID          string    `json:"_id"`                   // users.id
	Email       string    `json:"email"`                 // users.email
	Name        string    `json:"name,omitempty"`        // users.name
	PhotoURL    string    `json:"photoURL,omitempty"`    // users.photo_url
	Role        string    `json:"role"`                  // users.role
	DecoratorID *string   `json:"decoratorId,omitempty"` // users.decorator_id (nullable)
	CreatedAt   time.Time `json:"createdAt"`             // users.created_at
	UpdatedAt   time.Time `json:"updatedAt"`             // users.updated_at
}

// ValidRole reports whether r is one of the known roles.
func ValidRole(r string) bool {
	return r == RoleClient || r == RoleDecorator || r == RoleAdmin
}
