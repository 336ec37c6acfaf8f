package config

import (
	"os"
	"strconv"
	"strings"
)

// applyEnvOverrides applies selected runtime environment variables into config.
// It returns true when any value changed so callers can persist updated config.
func applyEnvOverrides(cfg *Config) bool {
	if cfg == nil {
		return false
	}

	changed := false

	setString := func(dst *string, value string) {
		if strings.TrimSpace(value) == "" {
			return
		}
		if *dst != value {
			*dst = value
			changed = true
		}
	}
	setInt := func(dst *int, value string) {
		if strings.TrimSpace(value) == "" {
			return
		}
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return
		}
		if *dst != parsed {
			*dst = parsed
			changed = true
		}
	}
	setBool := func(dst *bool, value string) {
		if strings.TrimSpace(value) == "" {
			return
		}
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return
		}
		if *dst != parsed {
			*dst = parsed
			changed = true
		}
	}

	env := func(keys ...string) string {
		for _, key := range keys {
			if value := strings.TrimSpace(os.Getenv(key)); value != "" {
				return value
			}
		}
		return ""
	}

	setString(&cfg.LogLevel, env("WAHOOK_LOG_LEVEL"))

	setString(&cfg.API.Host, env("WAHOOK_API_HOST"))
	setInt(&cfg.API.Port, env("WAHOOK_API_PORT", "PORT"))
	setBool(&cfg.API.AuthEnabled, env("WAHOOK_API_AUTH_ENABLED"))
	setString(&cfg.API.Token, env("WAHOOK_API_TOKEN"))

	setString(&cfg.Webhook.URL, env("WAHOOK_WEBHOOK_URL", "N8N_WEBHOOK_URL"))
	setInt(&cfg.Webhook.TimeoutSeconds, env("WAHOOK_WEBHOOK_TIMEOUT_SECONDS"))

	setString(&cfg.Channels.WhatsApp.StorePath, env("WAHOOK_WHATSAPP_STORE_PATH"))
	setString(&cfg.Channels.WhatsApp.DatabaseURL, env("WAHOOK_WHATSAPP_DATABASE_URL"))
	setString(&cfg.Channels.WhatsApp.PairingMode, env("WAHOOK_WHATSAPP_PAIRING_MODE"))
	setString(&cfg.Channels.WhatsApp.PairPhone, env("WAHOOK_WHATSAPP_PAIR_PHONE"))
	setBool(&cfg.Channels.WhatsApp.PrintQR, env("WAHOOK_WHATSAPP_PRINT_QR"))

	return changed
}
