package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/styledecor/internal/model"
	"github.com/iliyamo/styledecor/internal/repository"
)

// UserEngine manages the identity anchor records.  Roles live on the user
// record, not in the access token.
type UserEngine struct {
	Users      UserStore
	Decorators DecoratorStore
	Now        Clock
}

func NewUserEngine(u UserStore, d DecoratorStore) *UserEngine {
	return &UserEngine{Users: u, Decorators: d, Now: utcNow}
}

// SignIn returns the user for email, creating it as a client on first
// sign-in.  An applicant approved before their first sign-in is linked
// here.
func (e *UserEngine) SignIn(ctx context.Context, email, name, photoURL string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, invalid("email is required")
	}
	u := &model.User{Email: email, Name: strings.TrimSpace(name), PhotoURL: strings.TrimSpace(photoURL), Role: model.RoleClient}
	created, err := e.Users.Upsert(ctx, u)
	if err != nil {
		return nil, internal("upsert user", err)
	}
	if created && e.Decorators != nil {
		d, err := e.Decorators.GetByEmail(ctx, email)
		if err == nil && d.ApplicationStatus == model.ApplicationApproved {
			if err := e.Users.LinkDecorator(ctx, email, d.ID, e.Now()); err != nil {
				zap.L().Error("sign-in: link approved decorator failed", zap.String("email", email), zap.Error(err))
			} else {
				return e.Get(ctx, email)
			}
		}
	}
	return u, nil
}

func (e *UserEngine) Get(ctx context.Context, email string) (*model.User, error) {
	u, err := e.Users.GetByEmail(ctx, email)
	if err != nil {
		return nil, fromStore(err, "user")
	}
	return u, nil
}

// Role returns the role of email.  Unknown users are NotFound.
func (e *UserEngine) Role(ctx context.Context, email string) (string, error) {
	u, err := e.Users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", notFound("user not found")
		}
		return "", internal("lookup user", err)
	}
	return u.Role, nil
}

func (e *UserEngine) ListUsers(ctx context.Context) ([]model.User, error) {
	out, err := e.Users.List(ctx)
	if err != nil {
		return nil, internal("list users", err)
	}
	return out, nil
}

// SetRole changes a user's role to client or admin.  The decorator role is
// only granted by approving an application.
func (e *UserEngine) SetRole(ctx context.Context, email, role string) (*model.User, error) {
	if role != model.RoleClient && role != model.RoleAdmin {
		return nil, invalid("role must be client or admin")
	}
	if err := e.Users.SetRole(ctx, email, role, e.Now()); err != nil {
		return nil, fromStore(err, "user")
	}
	return e.Get(ctx, email)
}
