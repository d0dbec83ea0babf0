package auth

import "context"

var _ Checker = (*Service)(nil)
var _ Checker = (*TestChecker)(nil)

type Checker interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}
