package auth

import "context"

type contextKey string

const contextKeyActor contextKey = "auth.actor"

// Actor is the verified caller identity.
type Actor struct {
	Subject   string
	Role      Role
	OMCID     string
	DealerID  string
	StationID string
}

// Can reports whether the actor holds a capability.
func (a Actor) Can(capability Capability) bool {
	return HasCapability(a.Role, capability)
}

// Validate checks that the actor carries the scope identifier its role needs.
func (a Actor) Validate() error {
	if _, ok := NormalizeRole(string(a.Role)); !ok {
		return ErrInvalidToken
	}
	switch a.Role {
	case RoleOMC:
		if a.OMCID == "" {
			return ErrMissingScope
		}
	case RoleDealer:
		if a.DealerID == "" {
			return ErrMissingScope
		}
	case RoleStationManager, RoleAttendant:
		if a.StationID == "" {
			return ErrMissingScope
		}
	}
	return nil
}

// WithActor stores the actor in context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, contextKeyActor, actor)
}

// ActorFromContext extracts the actor from context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(contextKeyActor).(Actor)
	return actor, ok
}

// SubjectFromContext extracts the subject from context.
func SubjectFromContext(ctx context.Context) string {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return ""
	}
	return actor.Subject
}
