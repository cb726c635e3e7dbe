package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// MMTConfig configures the MMT.gg client and the defaults the UI starts with.
type MMTConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	APIKeyParameter string        `mapstructure:"api_key_parameter"` // SSM parameter name
	Region          string        `mapstructure:"region"`
	BaseURL         string        `mapstructure:"base_url"` // overrides region
	Timeout         time.Duration `mapstructure:"timeout"`
	Exchange        string        `mapstructure:"exchange"`
	Symbol          string        `mapstructure:"symbol"`
	TF              string        `mapstructure:"tf"`
}

// ParameterGetter is the slice of the SSM client used to read secrets.
type ParameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// NewSSMClient builds an SSM client from the default AWS credential chain.
func NewSSMClient(ctx context.Context) (*ssm.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return ssm.NewFromConfig(cfg), nil
}

// ResolveAPIKey returns the configured key (mmt.api_key, or MMT_API_KEY
// through Load), then the SSM parameter named by APIKeyParameter. getter may be nil, in which case an
// SSM client is built on demand. An empty result with a nil error means no
// key is available.
func (c MMTConfig) ResolveAPIKey(ctx context.Context, getter ParameterGetter) (string, error) {
	if key := strings.TrimSpace(c.APIKey); key != "" {
		return key, nil
	}
	if c.APIKeyParameter == "" {
		return "", nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if getter == nil {
		client, err := NewSSMClient(ctx)
		if err != nil {
			return "", err
		}
		getter = client
	}
	return getParameterStoreValue(ctx, getter, c.APIKeyParameter, true)
}

func getParameterStoreValue(ctx context.Context, getter ParameterGetter, name string, decrypt bool) (string, error) {
	result, err := getter.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &name,
		WithDecryption: &decrypt,
	})
	if err != nil {
		return "", fmt.Errorf("get parameter %s: %w", name, err)
	}
	if result.Parameter == nil || result.Parameter.Value == nil {
		return "", nil
	}
	return strings.TrimSpace(*result.Parameter.Value), nil
}
