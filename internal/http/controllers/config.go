package controllers

import (
	"net/http"

	"github.com/dropDatabas3/gatehouse/internal/http/helpers"
	"github.com/dropDatabas3/gatehouse/internal/validation"
)

// PublicConfig is the presentation flags the client reads on startup.
type PublicConfig struct {
	PrivateBetaMode     bool     `json:"privateBetaMode"`
	RequiresCaptcha     bool     `json:"requiresCaptcha"`
	CaptchaSiteKey      string   `json:"captchaSiteKey,omitempty"`
	RegistrationEnabled bool     `json:"registrationEnabled"`
	DirectoryLogin      bool     `json:"directoryLogin"`
	ValidationMessages  []string `json:"validationMessages"`
}

type ConfigController struct {
	cfg PublicConfig
}

func NewConfigController(cfg PublicConfig) *ConfigController {
	if cfg.ValidationMessages == nil {
		cfg.ValidationMessages = validation.MessageKeys()
	}
	return &ConfigController{cfg: cfg}
}

// GET /api/config
func (c *ConfigController) Get(w http.ResponseWriter, r *http.Request) {
	helpers.WriteJSON(w, http.StatusOK, c.cfg)
}
