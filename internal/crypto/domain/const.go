package domain

// Algorithm represents the cryptographic algorithm used for encryption.
//
// All supported algorithms provide Authenticated Encryption with Associated Data (AEAD),
// ensuring both confidentiality and authenticity of encrypted data. AEAD prevents both
// unauthorized reading and tampering with encrypted data.
//
// Algorithm selection guidelines:
//   - Use AESGCM on modern CPUs with AES-NI hardware acceleration
//   - Use ChaCha20 on mobile devices or systems without AES-NI
//   - Both provide equivalent 256-bit security when used correctly
type Algorithm string

const (
	// AESGCM represents the AES-256-GCM authenticated encryption algorithm.
	//
	// AES-GCM (Advanced Encryption Standard in Galois/Counter Mode) combines
	// AES encryption with GMAC authentication. It uses a 256-bit key and
	// provides excellent performance on hardware with AES-NI acceleration.
	//
	// Key features:
	//   - 256-bit key size for maximum security
	//   - 12-byte nonce (96 bits)
	//   - 16-byte authentication tag
	//   - Hardware acceleration on modern CPUs
	AESGCM Algorithm = "aes-gcm"

	// ChaCha20 represents the ChaCha20-Poly1305 authenticated encryption algorithm.
	//
	// ChaCha20-Poly1305 combines the ChaCha20 stream cipher with the Poly1305 MAC
	// for authentication. It's designed for high performance on platforms without
	// AES hardware acceleration and is resistant to timing attacks.
	//
	// Key features:
	//   - 256-bit key size
	//   - 12-byte nonce (96 bits)
	//   - 16-byte authentication tag
	//   - Constant-time implementation
	//   - Excellent software performance
	ChaCha20 Algorithm = "chacha20-poly1305"

	// Ed25519 represents the Ed25519 digital signature algorithm.
	Ed25519 Algorithm = "ed25519"

	// RSA4096 represents RSA-4096 used for key-wrapping (PKCS#1 v1.5).
	RSA4096 Algorithm = "rsa-4096"
)

// KeyKind classifies what role a key plays in the system, independent of
// which algorithm it uses.
type KeyKind string

const (
	// KindSymmetric identifies a field-encryption DEK (AESGCM or ChaCha20).
	KindSymmetric KeyKind = "symmetric"

	// KindSigningPrivate identifies an Ed25519 private signing key.
	KindSigningPrivate KeyKind = "signing_private"

	// KindSigningPublic identifies an Ed25519 public verification key.
	KindSigningPublic KeyKind = "signing_public"

	// KindWrapPrivate identifies an RSA-4096 private unwrap key.
	KindWrapPrivate KeyKind = "wrap_private"

	// KindWrapPublic identifies an RSA-4096 public wrap key.
	KindWrapPublic KeyKind = "wrap_public"
)

// KeyState models the position of a key in its rotation lifecycle.
type KeyState string

const (
	// StateActive keys are returned by GetOrCreate and used for new encryptions.
	StateActive KeyState = "active"

	// StateRetired keys are still readable via GetByID but never issued for new work.
	StateRetired KeyState = "retired"

	// StateTombstoned keys have been purged; their material no longer exists in memory.
	StateTombstoned KeyState = "tombstoned"
)

// KDFAlgorithm identifies which key-derivation function produced a derived key.
type KDFAlgorithm string

const (
	KDFArgon2id KDFAlgorithm = "argon2id"
	KDFPBKDF2   KDFAlgorithm = "pbkdf2_hmac_sha256"
	KDFScrypt   KDFAlgorithm = "scrypt"
	KDFHKDF     KDFAlgorithm = "hkdf_sha256"
)
