package auth

import (
	"encoding/base64"
	"fmt"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	qrcode "github.com/skip2/go-qrcode"
)

// TOTPManager handles the operator's optional second factor: secret
// enrollment with a QR provisioning image, and code validation at login.
type TOTPManager struct {
	issuer string
}

func NewTOTPManager(issuer string) *TOTPManager {
	return &TOTPManager{issuer: issuer}
}

// GenerateSecretWithQR creates a fresh TOTP secret for the given operator
// account and renders the provisioning URL as a QR code data URL for the
// enrollment screen.
func (tm *TOTPManager) GenerateSecretWithQR(accountEmail string) (secret, qrDataURL string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      tm.issuer,
		AccountName: accountEmail,
		SecretSize:  32,
		Period:      30,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to generate TOTP key: %w", err)
	}

	png, err := qrcode.Encode(key.URL(), qrcode.Medium, 256)
	if err != nil {
		return "", "", fmt.Errorf("failed to render provisioning QR code: %w", err)
	}

	qrDataURL = "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
	return key.Secret(), qrDataURL, nil
}

// Validate checks a submitted code against the enrolled secret.
func (tm *TOTPManager) Validate(secret, code string) bool {
	return totp.Validate(code, secret)
}
