package telegram

import (
	"encoding/json"
	"fmt"

	"github.com/whatsdex/gateway/internal/channels"
	"github.com/whatsdex/gateway/internal/store"
)

// instanceCreds maps the credentials JSON from the channel_instances
// table.
type instanceCreds struct {
	Token string `json:"token"`
}

// instanceConfig maps the non-secret config JSON.
type instanceConfig struct {
	Mode string `json:"mode,omitempty"`
}

// Factory builds the loader factory for Telegram instances.
func Factory() channels.AdapterFactory {
	return func(inst *store.ChannelInstance) (channels.Adapter, error) {
		var c instanceCreds
		if len(inst.Credentials) > 0 {
			if err := json.Unmarshal(inst.Credentials, &c); err != nil {
				return nil, fmt.Errorf("decode telegram credentials: %w", err)
			}
		}
		if c.Token == "" {
			return nil, fmt.Errorf("telegram token is required")
		}

		var ic instanceConfig
		if len(inst.Config) > 0 {
			if err := json.Unmarshal(inst.Config, &ic); err != nil {
				return nil, fmt.Errorf("decode telegram config: %w", err)
			}
		}

		return New(Config{Token: c.Token, BotID: inst.ID, Mode: ic.Mode}, inst.TenantID)
	}
}
