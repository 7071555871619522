package contract

import "context"

// OAuthHandler is the contract for the get-authorization-url /
// get-credentials action pair.
type OAuthHandler interface {
	AuthorizationURL(ctx context.Context, rt RuntimeContext, redirectURI string) (string, error)
	Credentials(ctx context.Context, rt RuntimeContext, code string) (map[string]interface{}, error)
}
