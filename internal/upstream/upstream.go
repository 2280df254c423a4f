// Package upstream agrupa el manejo común de respuestas de proveedores externos.
package upstream

import (
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"ki-studio/internal/metrics"
)

// maxErrorBody limita lo que se guarda de una respuesta de error.
const maxErrorBody = 64 << 10

// Error es una respuesta no exitosa de un proveedor. El handler reenvía Status y Body.
type Error struct {
	Service string
	Status  int
	Body    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s upstream error: status=%d body=%s", e.Service, e.Status, e.Body)
}

// Check registra la llamada y convierte respuestas >= 400 en *Error.
// Consume el body sólo en el caso de error.
func Check(service string, resp *http.Response, logger *zap.Logger) error {
	metrics.ObserveUpstream(service, resp.StatusCode)
	if resp.StatusCode < 400 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if logger != nil {
		logger.Debug("upstream error",
			zap.String("service", service),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body),
		)
	}
	return &Error{Service: service, Status: resp.StatusCode, Body: string(body)}
}

// Failed registra un error de red (sin respuesta).
func Failed(service string) {
	metrics.ObserveUpstream(service, 0)
}
