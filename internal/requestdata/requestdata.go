package requestdata

import (
	"context"

	"github.com/google/uuid"
)

var requestDataKey = struct{}{}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	val := ctx.Value(requestDataKey)
	if rd, ok := val.(*RequestData); ok {
		return rd
	}
	return nil
}

// RequestData carries the authenticated caller identity and role set.
// Token verification happens upstream; the core only authorizes.
type RequestData struct {
	UserID uuid.UUID
	Roles  []string
}

func (rd *RequestData) HasRole(role string) bool {
	if rd == nil {
		return false
	}
	for _, r := range rd.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (rd *RequestData) HasAnyRole(roles ...string) bool {
	for _, r := range roles {
		if rd.HasRole(r) {
			return true
		}
	}
	return false
}
