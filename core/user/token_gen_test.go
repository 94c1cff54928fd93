package user

import (
	"testing"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kipimo/core"
)

func TestMakeVerifyToken(t *testing.T) {
	now := time.Now()
	usr := User{
		ID:        "0b7f4f9e-3e0d-4c5c-9d2a-7d51d5c4a001",
		OrgID:     "5d1c2c47-8b9e-4f43-a2a4-0e6f1f0d7b10",
		Name:      "T",
		Email:     "t@test.test",
		Role:      RoleEmployee,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
		LastLogin: null.TimeFrom(now),
	}
	_ = usr.SetPassword("pwd")

	validToken, err := MakeToken(usr)
	if err != nil {
		t.Fatalf("MakeToken(): %v", err)
	}

	// generate an expired token
	hourLate := core.Conf.PasswordResetTimeoutDelta + time.Hour
	NowFunc = func() time.Time { return time.Now().Add(-hourLate) }
	expiredToken, err := MakeToken(usr)
	NowFunc = time.Now // reset
	if err != nil {
		t.Fatalf("MakeToken(): %v", err)
	}

	loggedInUsr := usr
	loggedInUsr.LastLogin = null.TimeFrom(now.Add(time.Hour))
	otherOrgUsr := usr
	otherOrgUsr.OrgID = "9a3e6a52-0f51-4b7e-8c36-2b0e3f7d9c22"
	newEmailUsr := usr
	newEmailUsr.Email = "t2@test.test"
	inactiveUsr := usr
	inactiveUsr.IsActive = false

	tests := []struct {
		name    string
		usr     User
		token   string
		wantErr error
	}{
		{name: "no token", usr: usr, wantErr: errInvalidToken},
		{name: "invalid parts len", usr: usr, token: "lmaooolol", wantErr: errInvalidToken},
		{name: "invalid base32", usr: usr, token: "hahaha-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid timestamp", usr: usr, token: "NRXWY-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid token", usr: usr, token: "HE4TS-sigsig-sig", wantErr: errInvalidToken},
		{name: "expired token", usr: usr, token: expiredToken, wantErr: errTokenExpired},
		{name: "used after login", usr: loggedInUsr, token: validToken, wantErr: errInvalidToken},
		{name: "other organization", usr: otherOrgUsr, token: validToken, wantErr: errInvalidToken},
		{name: "email changed", usr: newEmailUsr, token: validToken, wantErr: errInvalidToken},
		{name: "deactivated", usr: inactiveUsr, token: validToken, wantErr: errInvalidToken},
		{name: "missing signature", usr: usr, token: "HE4TS-", wantErr: errInvalidToken},
		{name: "valid token", usr: usr, token: validToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := verifyToken(tt.usr, tt.token); err != tt.wantErr {
				t.Errorf("verifyToken() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEncodeDecodeUID(t *testing.T) {
	usr := User{ID: "0b7f4f9e-3e0d-4c5c-9d2a-7d51d5c4a001"}
	id, err := decodeUID(EncodeUID(usr))
	if err != nil {
		t.Fatalf("decodeUID(): %v", err)
	}
	if id != usr.ID {
		t.Errorf("decodeUID() = %v, want %v", id, usr.ID)
	}
}
