package middleware

import (
	"errors"
	"net/http"

	"stockflow/internal/common"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
)

// ActorClaims identifies who is acting. actor_id wins over the subject when both are set.
type ActorClaims struct {
	ActorID string `json:"actor_id,omitempty"`
	jwt.RegisteredClaims
}

func (c *ActorClaims) actor() (uuid.UUID, error) {
	if c.ActorID != "" {
		return uuid.Parse(c.ActorID)
	}
	return uuid.Parse(c.Subject)
}

// ActorJWT validates an HS256 bearer token and stores the actor on the request context, where ledger
// writes pick it up. With required=false requests without a token pass through anonymously, but a
// token that is present must still be valid.
func ActorJWT(secret string, required bool) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		SigningKey:    []byte(secret),
		SigningMethod: echojwt.AlgorithmHS256,
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(ActorClaims)
		},
		SuccessHandler: func(c echo.Context) {
			token, ok := c.Get("user").(*jwt.Token)
			if !ok {
				return
			}
			claims, ok := token.Claims.(*ActorClaims)
			if !ok {
				return
			}
			actorID, err := claims.actor()
			if err != nil {
				return
			}
			c.SetRequest(c.Request().WithContext(common.WithActorID(c.Request().Context(), actorID)))
		},
		ContinueOnIgnoredError: true,
		ErrorHandler: func(c echo.Context, err error) error {
			var missing *echojwt.TokenExtractionError
			if !required && errors.As(err, &missing) {
				return nil
			}
			return echo.NewHTTPError(http.StatusUnauthorized, common.CreateErrorResponse("UNAUTHORIZED", "Invalid token", nil)).SetInternal(err)
		},
	})
}
