package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const userIDKey = "alertdash.user_id"

// UserResolver extracts the caller's user id from a request. ok is false when
// the request carries no usable identity.
type UserResolver interface {
	Resolve(c *gin.Context) (userID string, ok bool)
}

// ResolverFunc adapts a function to UserResolver.
type ResolverFunc func(c *gin.Context) (string, bool)

func (f ResolverFunc) Resolve(c *gin.Context) (string, bool) { return f(c) }

// HeaderResolver trusts a user id set by an upstream proxy. Values that are not
// UUIDs are ignored.
type HeaderResolver struct {
	Header string
}

func (r HeaderResolver) Resolve(c *gin.Context) (string, bool) {
	v := strings.TrimSpace(c.GetHeader(r.Header))
	if v == "" {
		return "", false
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return "", false
	}
	return id.String(), true
}

// TokenResolver maps static bearer tokens to user ids. A token mapped to
// something other than a UUID never authenticates.
type TokenResolver struct {
	Tokens map[string]string
}

func (r TokenResolver) Resolve(c *gin.Context) (string, bool) {
	if len(r.Tokens) == 0 {
		return "", false
	}
	authz := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if len(authz) <= len(prefix) || !strings.EqualFold(authz[:len(prefix)], prefix) {
		return "", false
	}
	userID, ok := r.Tokens[strings.TrimSpace(authz[len(prefix):])]
	if !ok || userID == "" {
		return "", false
	}
	id, err := uuid.Parse(strings.TrimSpace(userID))
	if err != nil {
		log.Warn().Str("user_id", userID).Msg("bearer token mapped to a non-UUID user id, rejecting")
		return "", false
	}
	return id.String(), true
}

// Chain tries each resolver in order and returns the first identity found.
func Chain(resolvers ...UserResolver) UserResolver {
	return ResolverFunc(func(c *gin.Context) (string, bool) {
		for _, r := range resolvers {
			if r == nil {
				continue
			}
			if id, ok := r.Resolve(c); ok {
				return id, true
			}
		}
		return "", false
	})
}

// Authentication rejects requests without an identity before any handler runs.
func Authentication(resolver UserResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := resolver.Resolve(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// UserID returns the id stored by Authentication.
func UserID(c *gin.Context) (string, bool) {
	v, ok := c.Get(userIDKey)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}
