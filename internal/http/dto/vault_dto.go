// Package dto provides data transfer objects for the vault HTTP surface.
package dto

import (
	"encoding/base64"
	"time"

	validation "github.com/jellydator/validation"

	cryptoDomain "github.com/allisson/vaultcore/internal/crypto/domain"
	customValidation "github.com/allisson/vaultcore/internal/validation"
	"github.com/allisson/vaultcore/internal/vault"
)

// EncryptFieldRequest contains the parameters for encrypting a single
// field value under the caller's active key for (owner, data_kind).
type EncryptFieldRequest struct {
	DataKind  string `json:"data_kind"`
	Plaintext string `json:"plaintext"` // Base64-encoded
	AAD       string `json:"aad"`       // Base64-encoded, optional
}

// Validate checks if the encrypt field request is valid.
func (r *EncryptFieldRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.DataKind, validation.Required, customValidation.NotBlank, validation.Length(1, 255)),
		validation.Field(&r.Plaintext, validation.Required, customValidation.NotBlank, customValidation.Base64),
		validation.Field(&r.AAD, customValidation.Base64),
	)
}

// DecryptFieldRequest contains the parameters for decrypting a previously
// produced Bundle. The bundle's own fields decode straight off the wire
// since vault.Bundle already carries the json tags for its wire form.
type DecryptFieldRequest struct {
	DataKind string       `json:"data_kind"`
	Bundle   vault.Bundle `json:"bundle"`
}

// Validate checks if the decrypt field request is valid.
func (r *DecryptFieldRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.DataKind, validation.Required, customValidation.NotBlank, validation.Length(1, 255)),
		validation.Field(&r.Bundle.Algorithm, validation.Required, customValidation.NotBlank),
		validation.Field(&r.Bundle.KeyID, validation.Required, customValidation.NotBlank),
	)
}

// EncryptForTransportRequest contains the parameters for wrapping a short
// message under a recipient's RSA-4096 public key.
type EncryptForTransportRequest struct {
	Plaintext          string `json:"plaintext"`           // Base64-encoded
	RecipientPublicKey string `json:"recipient_public_key"` // PEM-encoded RSA public key
}

// Validate checks if the encrypt-for-transport request is valid.
func (r *EncryptForTransportRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Plaintext, validation.Required, customValidation.NotBlank, customValidation.Base64),
		validation.Field(&r.RecipientPublicKey, validation.Required, customValidation.NotBlank),
	)
}

// RotateUserKeysRequest contains the parameters for rotating the active
// field key of a given data kind.
type RotateUserKeysRequest struct {
	DataKind string `json:"data_kind"`
}

// Validate checks if the rotate request is valid.
func (r *RotateUserKeysRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.DataKind, validation.Required, customValidation.NotBlank, validation.Length(1, 255)),
	)
}

// DecryptFieldResponse carries the recovered plaintext. SECURITY: transmit
// over TLS only; the caller is expected to discard it promptly.
type DecryptFieldResponse struct {
	Plaintext string `json:"plaintext"` // Base64-encoded
}

// MapDecryptFieldResponse converts recovered plaintext to its wire form.
func MapDecryptFieldResponse(plaintext []byte) DecryptFieldResponse {
	return DecryptFieldResponse{Plaintext: base64.StdEncoding.EncodeToString(plaintext)}
}

// FieldKeyResponse represents a field key's non-secret metadata in API
// responses. The key material itself never leaves the process.
type FieldKeyResponse struct {
	KeyID         string     `json:"key_id"`
	OwnerUser     string     `json:"owner_user"`
	DataKind      string     `json:"data_kind"`
	Algorithm     string     `json:"algorithm"`
	State         string     `json:"state"`
	CreatedAt     time.Time  `json:"created_at"`
	RotationDueAt time.Time  `json:"rotation_due_at"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

// MapFieldKeyToResponse converts a domain field key to an API response.
func MapFieldKeyToResponse(fk cryptoDomain.FieldKey) FieldKeyResponse {
	return FieldKeyResponse{
		KeyID:         fk.ID.String(),
		OwnerUser:     fk.OwnerUser,
		DataKind:      fk.DataKind,
		Algorithm:     string(fk.Algorithm),
		State:         string(fk.State),
		CreatedAt:     fk.CreatedAt,
		RotationDueAt: fk.RotationDueAt,
		ExpiresAt:     fk.ExpiresAt,
	}
}

// StatsResponse mirrors vault.Stats for API consumers.
type StatsResponse struct {
	EncryptCount      int64 `json:"encrypt_count"`
	DecryptCount      int64 `json:"decrypt_count"`
	RotationCount     int64 `json:"rotation_count"`
	TransportCount    int64 `json:"transport_count"`
	ErrorCount        int64 `json:"error_count"`
	KeysNeedingRotate int64 `json:"keys_needing_rotate"`
}

// MapStatsToResponse converts facade stats to an API response.
func MapStatsToResponse(s vault.Stats) StatsResponse {
	return StatsResponse{
		EncryptCount:      s.EncryptCount,
		DecryptCount:      s.DecryptCount,
		RotationCount:     s.RotationCount,
		TransportCount:    s.TransportCount,
		ErrorCount:        s.ErrorCount,
		KeysNeedingRotate: s.KeysNeedingRotate,
	}
}
