// package services binds the backend API to the HTTP client and interceptor
package services

import (
	"context"
	"net/http"

	"github.com/desertthunder/perc/internal/client"
	"github.com/desertthunder/perc/internal/interceptor"
)

// API groups every backend resource behind one client and interceptor.
type API struct {
	Auth     *AuthService
	Analyses *AnalysisService
	Legacy   *LegacyService
	System   *SystemService
}

// New wires the services to c and ic.
func New(c *client.Client, ic *interceptor.Interceptor) *API {
	b := &base{client: c, ic: ic}
	return &API{
		Auth:     &AuthService{base: b},
		Analyses: &AnalysisService{base: b},
		Legacy:   &LegacyService{base: b},
		System:   &SystemService{base: b},
	}
}

type base struct {
	client *client.Client
	ic     *interceptor.Interceptor
}

// call sends a JSON request through the interceptor and decodes the response into a new T.
func call[T any](ctx context.Context, b *base, opts interceptor.Options, method, endpoint string, body any) (*T, error) {
	return interceptor.Call(ctx, b.ic, opts, func(ctx context.Context) (*T, error) {
		var result T
		if err := b.client.Do(ctx, method, endpoint, body, &result); err != nil {
			return nil, err
		}
		return &result, nil
	})
}

func get[T any](ctx context.Context, b *base, endpoint string) (*T, error) {
	return call[T](ctx, b, interceptor.Options{}, http.MethodGet, endpoint, nil)
}
