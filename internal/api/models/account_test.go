package models_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/veilchat/veilchat/internal/api/models"
)

func TestAccountRegisterRequest_Validate(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
		wantErrs int
	}{
		{"valid", "alice", "correct-horse", 0},
		{"username too short", "al", "correct-horse", 1},
		{"username too long", strings.Repeat("a", 33), "correct-horse", 1},
		{"username with spaces", "al ice", "correct-horse", 1},
		{"username with at sign", "alice@evil", "correct-horse", 1},
		{"password too short", "alice", "short", 1},
		{"password too long", "alice", strings.Repeat("x", 129), 1},
		{"both missing", "", "", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := models.AccountRegisterRequest{Username: tt.username, Password: tt.password}
			assert.Len(t, req.Validate(), tt.wantErrs)
		})
	}
}

func TestAccountDeleteRequest_Validate(t *testing.T) {
	req := models.AccountDeleteRequest{JID: "alice@example.com", Password: "correct-horse"}
	assert.Empty(t, req.Validate())

	req.Password = ""
	errs := req.Validate()
	assert.Len(t, errs, 1)
	assert.Equal(t, "password", errs[0].Field)
}

func TestGroupCreateRequest_Validate(t *testing.T) {
	req := models.GroupCreateRequest{Name: "Project Team"}
	assert.Empty(t, req.Validate())

	req.Name = ""
	assert.Len(t, req.Validate(), 1)

	req.Name = strings.Repeat("n", 101)
	assert.Len(t, req.Validate(), 1)
}
