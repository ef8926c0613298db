//go:generate go run go.uber.org/mock/mockgen -source=identity.go -destination=../mocks/mock_verifier.go -package=mocks
package chat

import "context"

// Identity is a verified user as issued by a Verifier.
type Identity struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Verifier turns a bearer credential into a trusted Identity.
//
// Implementations return an error wrapping ErrAuthRequired when the credential
// is empty and ErrInvalidToken when it fails verification.
type Verifier interface {
	Verify(ctx context.Context, credential string) (Identity, error)
}
