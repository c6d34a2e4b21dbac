package bedrock

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/ncecere/tenant_console/internal/config"
)

const Name = "bedrock"

var ErrNotConfigured = errors.New("bedrock region required")

// Prober verifies the AWS credentials used for Bedrock. It calls STS
// GetCallerIdentity so a probe never incurs inference costs.
type Prober struct {
	stsClient *sts.Client
	model     string
}

// New creates a prober using the provided credentials/region.
func New(ctx context.Context, cfg config.BedrockConfig) (*Prober, error) {
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		return nil, ErrNotConfigured
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
		awsconfig.WithRetryMaxAttempts(1),
	}
	if cfg.Profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		staticProvider := credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(staticProvider))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if awsCfg.Region == "" {
		awsCfg.Region = region
	}

	endpoint := strings.TrimSpace(cfg.Endpoint)
	stsClient := sts.NewFromConfig(awsCfg, func(o *sts.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return &Prober{stsClient: stsClient, model: strings.TrimSpace(cfg.Model)}, nil
}

func (p *Prober) Name() string  { return Name }
func (p *Prober) Model() string { return p.model }

func (p *Prober) Probe(ctx context.Context) error {
	if p.stsClient == nil {
		return errors.New("bedrock sts client not initialised")
	}
	_, err := p.stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	return err
}
