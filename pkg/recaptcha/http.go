package recaptcha

import "net/http"

type HTTP interface {
	Do(req *http.Request) (*http.Response, error)
}
