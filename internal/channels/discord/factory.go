package discord

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

// Factory builds the loader factory for Discord instances.
func Factory() channels.AdapterFactory {
	return func(inst *store.ChannelInstance) (channels.Adapter, error) {
		var c instanceCreds
		if len(inst.Credentials) > 0 {
			if err := json.Unmarshal(inst.Credentials, &c); err != nil {
				return nil, fmt.Errorf("decode discord credentials: %w", err)
			}
		}
		if c.Token == "" {
			return nil, fmt.Errorf("discord token is required")
		}

		return New(Config{Token: c.Token, BotID: inst.ID}, inst.TenantID)
	}
}
