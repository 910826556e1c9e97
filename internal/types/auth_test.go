package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "ada@example.com", NormalizeEmail("  Ada@Example.COM "))
	assert.Equal(t, "", NormalizeEmail("   "))
}

func TestCreateUserRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		request CreateUserRequest
		errMsg  string
	}{
		{name: "valid", request: CreateUserRequest{Username: "Ada", Email: "ada@example.com", Password: "password123"}},
		{name: "blank username", request: CreateUserRequest{Username: "   ", Email: "ada@example.com", Password: "password123"}, errMsg: "required"},
		{name: "invalid email", request: CreateUserRequest{Username: "Ada", Email: "not-an-email", Password: "password123"}, errMsg: "email"},
		{name: "short password", request: CreateUserRequest{Username: "Ada", Email: "ada@example.com", Password: "short"}, errMsg: "min"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.request.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestCreateUserRequest_ValidateNormalizes(t *testing.T) {
	req := CreateUserRequest{Username: " Ada ", Email: " ADA@Example.com", Password: "password123"}

	require.NoError(t, req.Validate())
	assert.Equal(t, "Ada", req.Username)
	assert.Equal(t, "ada@example.com", req.Email)
}

func TestLoginRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		request LoginRequest
		wantErr bool
	}{
		{name: "valid", request: LoginRequest{Email: "a@example.com", Password: "x"}},
		{name: "mixed case email", request: LoginRequest{Email: " A@Example.com", Password: "x"}},
		{name: "missing password", request: LoginRequest{Email: "a@example.com"}, wantErr: true},
		{name: "missing email", request: LoginRequest{Password: "x"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.request.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, "a@example.com", tt.request.Email)
		})
	}
}

func TestLoginResponse_OmitsSecrets(t *testing.T) {
	resp := LoginResponse{
		User:  &User{ID: uuid.New(), Username: "Jane", Email: "jane@example.com", CreatedAt: time.Now().UTC()},
		Token: "token-value",
	}

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded struct {
		Token string         `json:"token"`
		User  map[string]any `json:"user"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "token-value", decoded.Token)
	assert.Equal(t, "jane@example.com", decoded.User["email"])
	assert.NotContains(t, string(data), "password")
}
