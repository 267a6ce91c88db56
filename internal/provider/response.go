package provider

import "github.com/ParleSec/openid-provider/internal/openid"

// Confirmation describes the user interaction a checkid_setup request
// needs before the provider can assert anything: a login when the
// session is anonymous, a realm approval otherwise.
type Confirmation struct {
	Realm     string
	NeedLogin bool
}

// Response is the outcome of processing an OpenID request. Exactly one
// field is set:
//
//   - Direct: a key-value form body returned over the direct channel
//     (associate, check_authentication, direct errors)
//   - RedirectURL: an indirect response delivered via the relying
//     party's return_to URL
//   - Confirm: the request is parked on the session until the user
//     logs in or approves the realm
type Response struct {
	Direct      *openid.Message
	RedirectURL string
	Confirm     *Confirmation
}

func directResponse(m *openid.Message) *Response {
	return &Response{Direct: m}
}

func redirectResponse(m *openid.Message) (*Response, error) {
	dest, err := m.DestinationURL()
	if err != nil {
		return nil, err
	}
	return &Response{RedirectURL: dest}, nil
}

func confirmResponse(realm string, needLogin bool) *Response {
	return &Response{Confirm: &Confirmation{Realm: realm, NeedLogin: needLogin}}
}
