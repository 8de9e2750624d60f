package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

type ParameterGetter interface {
	GetParameters(ctx context.Context, in *ssm.GetParametersInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersOutput, error)
}

// ResolveSecrets fills secrets the environment left empty from SSM Parameter Store,
// reading SecureString parameters named <SSM_PARAMETER_PREFIX>/<ENV_NAME>.
func (c *Config) ResolveSecrets(ctx context.Context, client ParameterGetter) error {
	if c.SSMParameterPrefix != "" {
		targets := map[string]*string{
			"SHOPIFY_API_SECRET": &c.Shopify.APISecret,
			"TOKEN_ENC_KEY_B64":  &c.TokenEncKeyB64,
			"REDIS_PASSWORD":     &c.Redis.Password,
		}
		byName := map[string]*string{}
		var names []string
		for env, dst := range targets {
			if *dst != "" {
				continue
			}
			name := c.SSMParameterPrefix + "/" + env
			names = append(names, name)
			byName[name] = dst
		}

		if len(names) > 0 {
			out, err := client.GetParameters(ctx, &ssm.GetParametersInput{
				Names:          names,
				WithDecryption: aws.Bool(true),
			})
			if err != nil {
				return fmt.Errorf("ssm GetParameters: %w", err)
			}
			for _, p := range out.Parameters {
				if dst, ok := byName[aws.ToString(p.Name)]; ok {
					*dst = strings.TrimSpace(aws.ToString(p.Value))
				}
			}
		}
	}

	if c.Shopify.APISecret == "" {
		return fmt.Errorf("SHOPIFY_API_SECRET is required")
	}
	return nil
}
