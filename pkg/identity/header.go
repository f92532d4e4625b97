package identity

import (
	"net/http"

	"carrental/pkg/model"
	"carrental/pkg/sanitizer"
)

const (
	HeaderUserID    = "X-User-ID"
	HeaderUserName  = "X-User-Name"
	HeaderUserEmail = "X-User-Email"
)

// HeaderProvider trusts identity headers set by an upstream gateway. Only
// enable it behind a proxy that strips these headers from client traffic.
type HeaderProvider struct{}

func NewHeaderProvider() HeaderProvider {
	return HeaderProvider{}
}

func (HeaderProvider) Resolve(r *http.Request) (*model.User, error) {
	id := sanitizer.TrimAndNormalize(r.Header.Get(HeaderUserID))
	if id == "" {
		return nil, nil
	}
	return &model.User{
		ID:    id,
		Name:  sanitizer.TrimAndNormalize(r.Header.Get(HeaderUserName)),
		Email: sanitizer.NormalizeEmail(r.Header.Get(HeaderUserEmail)),
	}, nil
}
