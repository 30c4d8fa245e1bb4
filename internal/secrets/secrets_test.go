package secrets_test

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/jtest"
	"github.com/stretchr/testify/require"

	"github.com/luno/docstream"
	"github.com/luno/docstream/internal/secrets"
)

type fakeAPI struct {
	secret *string
	err    error
	gotID  string
}

func (f *fakeAPI) GetSecretValue(_ context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.gotID = aws.ToString(in.SecretId)
	if f.err != nil {
		return nil, f.err
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: f.secret}, nil
}

func TestGet(t *testing.T) {
	ctx := context.Background()

	api := &fakeAPI{secret: aws.String(`{"username":"repl","password":"s3cret"}`)}
	c, err := secrets.Get(ctx, api, "docdb/repl")
	jtest.RequireNil(t, err)
	require.Equal(t, "docdb/repl", api.gotID)
	require.Equal(t, secrets.Credentials{Username: "repl", Password: "s3cret"}, c)
}

func TestGetErrors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		api  *fakeAPI
	}{
		{name: "api error", api: &fakeAPI{err: errors.New("access denied")}},
		{name: "binary secret", api: &fakeAPI{}},
		{name: "not json", api: &fakeAPI{secret: aws.String("repl:s3cret")}},
		{name: "no username", api: &fakeAPI{secret: aws.String(`{"password":"s3cret"}`)}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := secrets.Get(ctx, test.api, "docdb/repl")
			jtest.Require(t, docstream.ErrCredentials, err)
		})
	}
}
