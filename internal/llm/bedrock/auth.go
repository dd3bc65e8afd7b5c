package bedrock

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"
	smithyauth "github.com/aws/smithy-go/auth"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// withAPIKey makes every call authenticate with a Bedrock API key sent as
// an HTTP bearer token instead of a SigV4 signature.
func withAPIKey(key string) func(*bedrockruntime.Options) {
	return func(o *bedrockruntime.Options) {
		o.AuthSchemeResolver = bearerResolver{}
		o.AuthSchemes = []smithyhttp.AuthScheme{bearerScheme{key: apiKey(key)}}
	}
}

type bearerResolver struct{}

func (bearerResolver) ResolveAuthSchemes(context.Context, *bedrockruntime.AuthResolverParameters) ([]*smithyauth.Option, error) {
	return []*smithyauth.Option{{SchemeID: smithyauth.SchemeIDHTTPBearer}}, nil
}

type bearerScheme struct {
	key apiKey
}

func (bearerScheme) SchemeID() string { return smithyauth.SchemeIDHTTPBearer }

func (s bearerScheme) IdentityResolver(smithyauth.IdentityResolverOptions) smithyauth.IdentityResolver {
	return s
}

func (s bearerScheme) Signer() smithyhttp.Signer { return s }

func (s bearerScheme) GetIdentity(context.Context, smithy.Properties) (smithyauth.Identity, error) {
	return s.key, nil
}

func (bearerScheme) SignRequest(_ context.Context, req *smithyhttp.Request, id smithyauth.Identity, _ smithy.Properties) error {
	key, _ := id.(apiKey)
	req.Header.Set("Authorization", "Bearer "+string(key))
	return nil
}

// apiKey never expires.
type apiKey string

func (apiKey) Expiration() time.Time { return time.Time{} }
