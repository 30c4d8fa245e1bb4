// Package secrets retrieves source credentials from AWS Secrets Manager.
package secrets

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"

	"github.com/luno/docstream"
)

// API is the subset of *secretsmanager.Client used here.
type API interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// Credentials are the source username and password.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Get returns the credentials stored as {"username": ..., "password": ...}
// in the named secret. All failures wrap docstream.ErrCredentials.
func Get(ctx context.Context, api API, name string) (Credentials, error) {
	out, err := api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		return Credentials{}, errors.Wrap(docstream.ErrCredentials, "get secret value",
			j.MKS{"secret": name, "cause": err.Error()})
	}

	if out.SecretString == nil {
		return Credentials{}, errors.Wrap(docstream.ErrCredentials, "secret not a string", j.KS("secret", name))
	}

	var c Credentials
	if err := json.Unmarshal([]byte(*out.SecretString), &c); err != nil {
		return Credentials{}, errors.Wrap(docstream.ErrCredentials, "malformed secret", j.KS("secret", name))
	}
	if c.Username == "" {
		return Credentials{}, errors.Wrap(docstream.ErrCredentials, "secret without username", j.KS("secret", name))
	}

	return c, nil
}
