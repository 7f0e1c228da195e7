package api

import (
	_ "embed"
	"net/http"
	"strings"
)

//go:embed openapi.yaml
var openAPISpec string

// SpecHandler serves the OpenAPI document with {oktaIssuer} replaced by the
// configured issuer, so the published file stays tenant-neutral.
func SpecHandler(oktaIssuer string) http.HandlerFunc {
	spec := []byte(strings.ReplaceAll(openAPISpec, "{oktaIssuer}", oktaIssuer))
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(spec)
	}
}

// SwaggerHandler serves a Swagger UI page backed by the CDN assets. The UI
// authorizes against the same issuer as the API using PKCE.
func SwaggerHandler(oktaIssuer, clientID string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		html := strings.NewReplacer(
			"${SPEC_URL}", "/openapi.yaml",
			"${OAUTH2_REDIRECT}", baseURL(r)+"/docs/oauth2-redirect.html",
			"${OKTA_DOMAIN}", oktaIssuer,
			"${CLIENT_ID}", clientID,
		).Replace(swaggerHTML)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(html))
	}
}

// OAuthRedirectHandler serves the OAuth2 redirect page used by Swagger UI
func OAuthRedirectHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(oauthRedirectHTML))
}

// baseURL derives scheme and host for the request; r.URL.Scheme is only
// populated for proxy requests.
func baseURL(r *http.Request) string {
	scheme := "http"
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	} else if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

const swaggerHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <title>Fleet Assist API</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist/swagger-ui.css" />
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist/swagger-ui-bundle.js"></script>
  <script>
  window.onload = function() {
    const ui = SwaggerUIBundle({
      url: "${SPEC_URL}",
      dom_id: '#swagger-ui',
      presets: [SwaggerUIBundle.presets.apis],
      layout: "BaseLayout",
      oauth2RedirectUrl: "${OAUTH2_REDIRECT}",
    });
    window.ui = ui;

    ui.initOAuth({
      clientId: "${CLIENT_ID}",
      usePkceWithAuthorizationCodeGrant: true,
      scopes: "openid profile email",
    });

    // PKCE needs no secret; hide the client fields in the authorize dialog.
    const style = document.createElement('style');
    style.textContent =
      ".dialog-ux input[name=\"client_id\"], .dialog-ux label[for=\"client_id\"] { display: none !important; }";
    document.head.appendChild(style);

    const observer = new MutationObserver(() => {
      const cid = document.querySelector('.dialog-ux input[name="client_id"]');
      if (cid) {
        cid.value = "${CLIENT_ID}";
      }
      const secret = document.querySelector('.dialog-ux input[name="client_secret"]');
      if (secret) {
        secret.placeholder = "not used (PKCE)";
        secret.disabled = true;
      }
    });
    observer.observe(document.body, { childList: true, subtree: true });

    const tokenBox = document.createElement('textarea');
    tokenBox.readOnly = true;
    tokenBox.rows = 3;
    tokenBox.style.width = '100%';
    tokenBox.placeholder = 'Bearer token from ${OKTA_DOMAIN} will appear here after authorization';
    const container = document.createElement('div');
    container.style.margin = '10px 0';
    container.appendChild(tokenBox);
    document.body.insertBefore(container, document.getElementById('swagger-ui'));

    const interval = setInterval(() => {
      try {
        const auth = ui.getSystem().authSelectors.authorized().toJS();
        for (const key in auth) {
          const token = auth[key] && auth[key].token && auth[key].token.access_token;
          if (token) {
            tokenBox.value = token;
          }
        }
      } catch (e) {
        // UI not ready yet
      }
    }, 1000);
    setTimeout(() => clearInterval(interval), 60000);
  }
  </script>
</body>
</html>`

const oauthRedirectHTML = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"/><title>OAuth2 Redirect</title></head>
<body>
<script src="https://unpkg.com/swagger-ui-dist/oauth2-redirect.js"></script>
</body>
</html>`
