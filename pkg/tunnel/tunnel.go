package tunnel

import (
	"context"
	"errors"
	"fmt"
	"net"

	"go.uber.org/zap"
	"golang.ngrok.com/ngrok"
	ngrokconfig "golang.ngrok.com/ngrok/config"
)

var ErrMissingAuthToken = errors.New("ngrok auth token is empty")

// Tunnel is a public HTTPS endpoint whose connections are accepted like a local listener.
type Tunnel struct {
	net.Listener
	url string
}

// Listen opens an ngrok HTTP endpoint. The session stays up until the listener is closed.
func Listen(ctx context.Context, authToken string, log *zap.Logger) (*Tunnel, error) {
	if authToken == "" {
		return nil, ErrMissingAuthToken
	}

	tun, err := ngrok.Listen(ctx,
		ngrokconfig.HTTPEndpoint(),
		ngrok.WithAuthtoken(authToken),
		ngrok.WithDisconnectHandler(func(ctx context.Context, sess ngrok.Session, err error) {
			if err != nil {
				log.Warn("Tunnel session disconnected", zap.Error(err))
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open ngrok tunnel: %w", err)
	}

	return &Tunnel{
		Listener: tun,
		url:      tun.URL(),
	}, nil
}

func (t *Tunnel) URL() string {
	return t.url
}
