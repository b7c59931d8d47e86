package intercept

import (
	"net/http"
	"sync"

	"github.com/jonwraymond/tylolens/lens"
)

type installation struct {
	prev http.RoundTripper
}

var (
	installMu sync.Mutex
	installed = map[*http.Client]*installation{}
)

// Install instruments client in place by replacing its Transport with a
// decorating Transport whose spans are named "http.transport". A nil
// client selects http.DefaultClient.
//
// The returned uninstall function restores the exact previous Transport
// value (nil included). It returns ErrNotInstalled when called again.
// Installing twice on one client without uninstalling fails with
// ErrAlreadyInstalled; a client whose effective transport is nil fails
// with ErrUnsupported.
//
// Install and uninstall must not race with requests on client.
func Install(l lens.SpanStarter, client *http.Client, opts ...Option) (uninstall func() error, err error) {
	if client == nil {
		client = http.DefaultClient
	}

	installMu.Lock()
	defer installMu.Unlock()

	if _, ok := installed[client]; ok {
		return nil, ErrAlreadyInstalled
	}
	prev := client.Transport
	base := prev
	if base == nil {
		base = http.DefaultTransport
	}
	if base == nil {
		return nil, ErrUnsupported
	}

	inst := &installation{prev: prev}
	installed[client] = inst
	client.Transport = newTransport(l, base, "http.transport", opts)

	return func() error {
		installMu.Lock()
		defer installMu.Unlock()
		if installed[client] != inst {
			return ErrNotInstalled
		}
		delete(installed, client)
		client.Transport = inst.prev
		return nil
	}, nil
}
