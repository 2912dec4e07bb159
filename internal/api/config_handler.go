package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shaiso/chatsoak/internal/config"
)

// GetConfig возвращает текущую конфигурацию без секретов.
// GET /api/config
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	Success(w, ConfigResponse{
		Config: h.store.Get().Public(),
		Pacing: PacingFromDomain(h.worker.Pacing()),
	})
}

// UpdateConfig частично обновляет конфигурацию.
// POST /api/config
//
// Темп применяется к воркеру сразу, остальные поля при следующем запуске.
func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var patch config.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	cfg, err := h.store.Update(patch)
	if err != nil {
		if errors.Is(err, config.ErrInvalidConfig) {
			BadRequest(w, err.Error())
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	if pp := patch.Pacing(); !pp.IsEmpty() {
		h.worker.UpdatePacing(pp.Apply(h.worker.Pacing()))
	}

	Success(w, ConfigResponse{
		Config: cfg.Public(),
		Pacing: PacingFromDomain(h.worker.Pacing()),
	})
}
