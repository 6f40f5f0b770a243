package gatewaytest

import (
	"github.com/caffeinepub/connect-dating/internal/domain/model"
	"github.com/caffeinepub/connect-dating/internal/gateway"
)

// Connector binds identity tokens to caller views of a Fake. Tokens the verifier
// rejects act as the anonymous identity.
type Connector struct {
	Fake     *Fake
	Verifier TokenVerifier
}

var _ gateway.Connector = Connector{}

func (c Connector) Connect(token string) gateway.Backend {
	caller := model.Anonymous
	if c.Verifier != nil && token != "" {
		if principal, _, err := c.Verifier.VerifyToken(token); err == nil {
			caller = principal
		}
	}
	return c.Fake.As(caller)
}
