package whatsapp

import (
	"encoding/json"
	"fmt"

	"github.com/whatsdex/gateway/internal/channels"
	"github.com/whatsdex/gateway/internal/store"
)

// instanceCreds maps the credentials JSON from the channel_instances
// table.
type instanceCreds struct {
	BridgeURL string `json:"bridge_url"`
}

// Factory builds the loader factory for WhatsApp instances. The
// credential store is captured so every adapter shares one backend.
func Factory(creds store.CredentialStore) channels.AdapterFactory {
	return func(inst *store.ChannelInstance) (channels.Adapter, error) {
		var c instanceCreds
		if len(inst.Credentials) > 0 {
			if err := json.Unmarshal(inst.Credentials, &c); err != nil {
				return nil, fmt.Errorf("decode whatsapp credentials: %w", err)
			}
		}
		if c.BridgeURL == "" {
			return nil, fmt.Errorf("whatsapp bridge_url is required")
		}

		return New(Config{BridgeURL: c.BridgeURL, BotID: inst.ID}, inst.TenantID, creds)
	}
}
