package loadshed

import (
	"net"
	"net/http"
	"strings"
)

// HeaderRequester é o header que identifica o solicitante antes do corpo ser lido.
const HeaderRequester = "X-Requester-Email"

type KeyFunc func(r *http.Request) string

// RequesterKeyFunc identifica o solicitante pelo header informado; sem ele, cai
// para o IP (X-Forwarded-For apenas se confiável) e por fim RemoteAddr.
func RequesterKeyFunc(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return strings.ToLower(v)
			}
		}

		if trustXFF {
			// pega o primeiro IP do X-Forwarded-For (cliente original)
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				ip, _, _ := strings.Cut(xff, ",")
				if ip = strings.TrimSpace(ip); ip != "" {
					return ip
				}
			}
		}

		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}
