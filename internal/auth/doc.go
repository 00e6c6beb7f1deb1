// Package auth provides optional bearer-token authentication for airway-api.
//
// When a JWT secret is configured, requests that change state must carry
//
//	Authorization: Bearer <token>
//
// where the token is an HS256 JWT with a non-empty "sub" and an "exp" claim.
// Reads stay public.
//
// # Tokens
//
//	v, err := auth.NewJWTVerifier(secret) // secret >= MinSecretLength bytes
//	token, err := v.Generate("deploy-bot", 24*time.Hour)
//	ac, err := v.Verify(token)
//
// # Middleware
//
// HTTPAuthMiddleware verifies the token and stores an AuthContext in the
// request context; handlers read it back with FromContext or
// SubjectFromContext. Failures are answered with 401 and logged with a
// "reason" attribute.
package auth
