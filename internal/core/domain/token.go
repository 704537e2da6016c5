package domain

// TokenKind distinguishes the purpose of a signed token.
type TokenKind string

const (
	TokenKindAccess       TokenKind = "access"
	TokenKindRefresh      TokenKind = "refresh"
	TokenKindMFAChallenge TokenKind = "mfa_challenge"
)

// TokenTypeBearer is reported to clients alongside issued token pairs.
const TokenTypeBearer = "Bearer"

// TokenPair bundles an access token with its refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
}

// AuthResult is the outcome of an authentication step: either a token pair or an MFA challenge.
type AuthResult struct {
	Tokens      *TokenPair
	MFARequired bool
	MFAToken    string
}
