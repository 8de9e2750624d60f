package config

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeParameters struct {
	values    map[string]string
	requested []string
	err       error
}

func (f *fakeParameters) GetParameters(_ context.Context, in *ssm.GetParametersInput, _ ...func(*ssm.Options)) (*ssm.GetParametersOutput, error) {
	f.requested = append(f.requested, in.Names...)
	if f.err != nil {
		return nil, f.err
	}
	out := &ssm.GetParametersOutput{}
	for _, n := range in.Names {
		if v, ok := f.values[n]; ok {
			out.Parameters = append(out.Parameters, types.Parameter{Name: aws.String(n), Value: aws.String(v)})
		}
	}
	return out, nil
}

func TestResolveSecretsFillsMissing(t *testing.T) {
	cfg := &Config{SSMParameterPrefix: "/voicero/prod", TokenEncKeyB64: "from-env"}
	params := &fakeParameters{values: map[string]string{
		"/voicero/prod/SHOPIFY_API_SECRET": " shh\n",
		"/voicero/prod/TOKEN_ENC_KEY_B64":  "from-ssm",
	}}

	require.NoError(t, cfg.ResolveSecrets(context.Background(), params))
	assert.Equal(t, "shh", cfg.Shopify.APISecret)
	assert.Equal(t, "from-env", cfg.TokenEncKeyB64)
	assert.NotContains(t, params.requested, "/voicero/prod/TOKEN_ENC_KEY_B64")
}

func TestResolveSecretsStillRequiresSecret(t *testing.T) {
	cfg := &Config{SSMParameterPrefix: "/voicero/prod"}
	require.Error(t, cfg.ResolveSecrets(context.Background(), &fakeParameters{}))

	cfg = &Config{SSMParameterPrefix: "/voicero/prod"}
	err := cfg.ResolveSecrets(context.Background(), &fakeParameters{err: errors.New("denied")})
	require.ErrorContains(t, err, "denied")
}

func TestResolveSecretsWithoutPrefix(t *testing.T) {
	cfg := &Config{Shopify: ShopifyConfig{APISecret: "set"}}
	params := &fakeParameters{}

	require.NoError(t, cfg.ResolveSecrets(context.Background(), params))
	assert.Empty(t, params.requested)
}
