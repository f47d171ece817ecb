// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package loopback

import (
	"context"
	"html/template"
	"net/http"
)

// callbackPage is shown in the browser once the provider redirected back.
var callbackPage = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
<h1 id="title">{{.Title}}</h1>
<p id="message">{{.Message}}</p>
{{- if .Detail}}
<p id="detail">{{.Detail}}</p>
{{- end}}
</body>
</html>
`))

type callbackView struct {
	Title   string
	Message string
	Detail  string
}

// callbackHandler accepts the provider's redirect. Redirects for another
// session are rejected, everything else is forwarded to the result handler
// after the page is written.
func (p *Platform) callbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		const op = "loopback.(Platform).callbackHandler"
		if err := req.ParseForm(); err != nil {
			p.writePage(w, http.StatusBadRequest, callbackView{
				Title:   "Sign-in failed",
				Message: "The sign-in response could not be read.",
			})
			return
		}
		payload := req.Form
		if payload.Get("state") != p.state {
			p.logger.Warn("rejecting redirect for another sign-in attempt", "op", op)
			p.writePage(w, http.StatusBadRequest, callbackView{
				Title:   "Sign-in failed",
				Message: "This sign-in attempt is no longer in progress.",
			})
			return
		}

		switch e := payload.Get("error"); {
		case e == "access_denied":
			p.writePage(w, http.StatusOK, callbackView{
				Title:   "Sign-in cancelled",
				Message: "You can close this window.",
			})
		case e != "":
			p.writePage(w, http.StatusOK, callbackView{
				Title:   "Sign-in failed",
				Message: "The identity provider returned an error. You can close this window.",
				Detail:  payload.Get("error_description"),
			})
		default:
			p.writePage(w, http.StatusOK, callbackView{
				Title:   "Sign-in complete",
				Message: "You can close this window and return to the application.",
			})
		}

		if p.onResult == nil {
			p.logger.Warn("no result handler for consent redirect", "op", op)
			return
		}
		// the request context ends with this handler but parsing the
		// consent outlives it
		p.onResult(context.WithoutCancel(req.Context()), payload)
	}
}

func (p *Platform) writePage(w http.ResponseWriter, status int, v callbackView) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := callbackPage.Execute(w, v); err != nil {
		p.logger.Error("unable to write callback page", "error", err)
	}
}
