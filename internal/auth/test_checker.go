package auth

import "context"

// TestChecker is used in unit tests to inject known tokens
type TestChecker struct {
	Identities map[string]*Identity
}

func NewTestChecker() *TestChecker {
	return &TestChecker{
		Identities: make(map[string]*Identity),
	}
}

func (c *TestChecker) Verify(_ context.Context, token string) (*Identity, error) {
	identity, ok := c.Identities[token]
	if !ok {
		return nil, ErrInvalidToken
	}
	return identity, nil
}
