// Package paramstore resolves secrets, such as the provider API key, from
// AWS Systems Manager Parameter Store.
package paramstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ssmAPI is the minimal AWS SSM interface required by Client.
// *ssm.Client from aws-sdk-go-v2 satisfies this interface.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Client wraps an AWS SSM API for parameter retrieval.
type Client struct {
	api ssmAPI
}

// New creates a Client with the given SSM API implementation.
func New(api ssmAPI) (*Client, error) {
	if api == nil {
		return nil, errors.New("paramstore: api must not be nil")
	}
	return &Client{api: api}, nil
}

// NewFromEnv builds a Client from the default AWS credential chain.
func NewFromEnv(ctx context.Context, region string) (*Client, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("paramstore: load aws config: %w", err)
	}
	return New(ssm.NewFromConfig(cfg))
}

func (c *Client) GetParameter(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("paramstore: name is required")
	}

	withDecryption := true
	out, err := c.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &name,
		WithDecryption: &withDecryption,
	})
	if err != nil {
		return "", fmt.Errorf("paramstore: get parameter %q: %w", name, err)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return "", errors.New("paramstore: parameter missing value")
	}
	return *out.Parameter.Value, nil
}

// APIKey fetches name and unwraps it. The stored value may be the bare key
// or a JSON object of the form {"token": "..."}.
func (c *Client) APIKey(ctx context.Context, name string) (string, error) {
	raw, err := c.GetParameter(ctx, name)
	if err != nil {
		return "", err
	}
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "{") {
		var payload struct {
			Token string `json:"token"`
		}
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return "", fmt.Errorf("paramstore: decode %q: %w", name, err)
		}
		raw = strings.TrimSpace(payload.Token)
	}
	if raw == "" {
		return "", fmt.Errorf("paramstore: parameter %q holds an empty key", name)
	}
	return raw, nil
}
