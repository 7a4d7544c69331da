package handler

import (
	"net/http"
	"net/http/httputil"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// apiPrefix is stripped from relayed paths: /api/tasks/7 reaches the backend as /tasks/7.
const apiPrefix = "/api"

// RelayHandler forwards certification resource calls (tasks, declarations,
// certificates, contracts, reference data) to the backend with the caller's
// credential attached. Authorization has already been decided by the guards.
type RelayHandler struct {
	log zerolog.Logger
}

func NewRelayHandler(log zerolog.Logger) *RelayHandler {
	return &RelayHandler{log: log}
}

// Serve relays the request.
//
// @Summary      Relay to certification backend
// @Tags         resources
// @Param        path  path  string  true  "Resource path below /api"
// @Success      200
// @Failure      302
// @Failure      403  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/{path} [get]
func (h *RelayHandler) Serve(c echo.Context) error {
	scope, err := ctxScope(c)
	if err != nil {
		return err
	}
	target := scope.Backend.BaseURL()
	requestID := c.Response().Header().Get(echo.HeaderXRequestID)

	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.Out.URL.Path = joinPath(target.Path, strings.TrimPrefix(pr.In.URL.Path, apiPrefix))
			pr.Out.URL.RawPath = ""
			pr.Out.Header.Del("Cookie")
			pr.Out.Header.Del(echo.HeaderAuthorization)
			if requestID != "" {
				pr.Out.Header.Set(echo.HeaderXRequestID, requestID)
			}
		},
		Transport: scope.Backend.Transport(),
		ModifyResponse: func(resp *http.Response) error {
			resp.Header.Del("Set-Cookie")
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			h.log.Warn().Err(err).Str("path", r.URL.Path).Str("request_id", requestID).Msg("relay to backend failed")
			w.Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"error":"certification backend unavailable"}`))
		},
	}

	proxy.ServeHTTP(c.Response(), c.Request())
	return nil
}

func joinPath(base, p string) string {
	if p == "" {
		p = "/"
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(p, "/")
}
