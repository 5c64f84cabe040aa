package api

import (
	"net/http"
	"net/url"

	"github.com/skip2/go-qrcode"

	"github.com/omnibrain/omnibrain/internal/apierr"
	"github.com/omnibrain/omnibrain/internal/events"
)

const googleAuthEndpoint = "https://accounts.google.com/o/oauth2/v2/auth"

var googleScopes = []string{
	"https://www.googleapis.com/auth/gmail.readonly",
	"https://www.googleapis.com/auth/calendar.readonly",
}

func (s *Server) googleAuthURL() (string, error) {
	g := s.rc.Config.Google
	if !g.Configured() {
		return "", apierr.Unavailable("google oauth is not configured (set google.client_id and google.redirect_url)")
	}
	q := url.Values{}
	q.Set("client_id", g.ClientID)
	q.Set("redirect_uri", g.RedirectURL)
	q.Set("response_type", "code")
	q.Set("access_type", "offline")
	q.Set("prompt", "consent")
	for _, scope := range googleScopes {
		q.Add("scope", scope)
	}
	return googleAuthEndpoint + "?" + q.Encode(), nil
}

// handleOAuthGoogleStart redirects the browser to Google's consent screen,
// or — with ?qr=1 — renders that same URL as a PNG QR code for headless
// pairing (e.g. a TUI client with no browser of its own).
func (s *Server) handleOAuthGoogleStart(w http.ResponseWriter, r *http.Request) {
	authURL, err := s.googleAuthURL()
	if err != nil {
		apierr.WriteHTTP(w, err)
		return
	}

	if r.URL.Query().Get("qr") == "1" {
		png, err := qrcode.Encode(authURL, qrcode.Medium, 256)
		if err != nil {
			apierr.WriteHTTP(w, apierr.Internal("encode qr code: %v", err))
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(png)
		return
	}

	http.Redirect(w, r, authURL, http.StatusFound)
}

// handleOAuthGoogleCallback receives the authorization code redirect. The
// actual token exchange (POSTing to Google's token endpoint) requires an
// HTTP client wired to Google's OAuth library, which is out of scope for
// this tree (SPEC_FULL.md's Non-goals exclude the concrete Gmail/Calendar
// clients) — this records the code pending a real exchange rather than
// silently dropping it.
func (s *Server) handleOAuthGoogleCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		apierr.WriteHTTP(w, apierr.BadRequest("missing authorization code"))
		return
	}
	if s.rc.Secure == nil {
		apierr.WriteHTTP(w, apierr.Unavailable("secure storage is not configured, cannot hold the pending authorization code"))
		return
	}
	if err := s.rc.Secure.Set("google_oauth_pending_code", code); err != nil {
		apierr.WriteHTTP(w, apierr.Internal("store pending code: %v", err))
		return
	}
	writeJSON(w, s.log, map[string]string{"status": "code_received"})
}

func (s *Server) handleOAuthStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{"configured": s.rc.Config.Google.Configured(), "connected": false}
	if s.rc.Secure != nil {
		if _, ok, _ := s.rc.Secure.Get("google_access_token"); ok {
			status["connected"] = true
		}
	}
	writeJSON(w, s.log, status)
}

func (s *Server) handleOAuthDisconnect(w http.ResponseWriter, r *http.Request) {
	if s.rc.Secure == nil {
		writeJSON(w, s.log, map[string]string{"status": "nothing to disconnect"})
		return
	}
	_ = s.rc.Secure.Delete("google_access_token")
	_ = s.rc.Secure.Delete("google_refresh_token")
	s.rc.Bus.Publish(events.TopicGoogleDisconnect, nil)
	writeJSON(w, s.log, map[string]string{"status": "disconnected"})
}
