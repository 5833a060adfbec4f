package secrets_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/freight/internal/secrets"
)

type fakeAPI struct {
	values map[string]*string
	calls  int
}

func (f *fakeAPI) GetSecretValue(_ context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.calls++
	v, ok := f.values[aws.ToString(in.SecretId)]
	if !ok {
		return nil, errors.New("ResourceNotFoundException")
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: v}, nil
}

func TestClient_Values(t *testing.T) {
	api := &fakeAPI{values: map[string]*string{
		"freight/prod": aws.String(`{"ORS_API_KEY":"ors-key","CEPABERTO_TOKEN":"cep-token"}`),
	}}
	c := secrets.NewWithAPI(api)

	values, err := c.Values(context.Background(), "freight/prod")
	require.NoError(t, err)
	assert.Equal(t, "ors-key", values["ORS_API_KEY"])
	assert.Equal(t, "cep-token", values["CEPABERTO_TOKEN"])

	_, err = c.GetSecret(context.Background(), "freight/prod")
	require.NoError(t, err)
	assert.Equal(t, 1, api.calls, "second read should hit the cache")
}

func TestClient_Errors(t *testing.T) {
	api := &fakeAPI{values: map[string]*string{
		"binary":  nil,
		"garbage": aws.String("not json"),
	}}
	c := secrets.NewWithAPI(api)

	_, err := c.GetSecret(context.Background(), "missing")
	assert.Error(t, err)

	_, err = c.GetSecret(context.Background(), "binary")
	assert.Error(t, err)

	_, err = c.Values(context.Background(), "garbage")
	assert.Error(t, err)
}
