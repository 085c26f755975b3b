package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/predictctl/pkg/secret"
)

const redactedValue = "<HIDDEN>"

// Set assigns the settings by their YAML keys; an empty value clears the
// setting. Either every value is applied or none.
func (cfg *Config) Set(values map[string]string) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := *cfg
	var mErr *multierror.Error
	for _, k := range keys {
		if err := result.set(k, values[k]); err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("'%s': %w", k, err))
		}
	}
	if err := mErr.ErrorOrNil(); err != nil {
		return err
	}
	*cfg = result
	return nil
}

func (cfg *Config) set(key, value string) error {
	switch key {
	case "channel":
		cfg.Channel = value
	case "client_id":
		cfg.ClientID = value
	case "client_secret":
		cfg.ClientSecret = secret.NewString(value)
	case "auth_type":
		t := AuthType(value)
		if err := t.Validate(); err != nil {
			return err
		}
		cfg.AuthType = t
	case "redirect_uri":
		cfg.RedirectURI = value
	case "oauth_listen_ports":
		var ports []uint16
		for _, s := range strings.Split(value, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			port, err := strconv.ParseUint(s, 10, 16)
			if err != nil {
				return fmt.Errorf("invalid port '%s': %w", s, err)
			}
			ports = append(ports, uint16(port))
		}
		cfg.OAuthListenPorts = ports
	case "access_token":
		cfg.AccessToken = secret.NewString(value)
	case "refresh_token":
		cfg.RefreshToken = secret.NewString(value)
	case "broadcaster_id":
		cfg.BroadcasterID = value
	case "recent_predictions_on_401":
		prev := cfg.RecentPredictionsOn401
		cfg.RecentPredictionsOn401 = value
		if _, err := cfg.UnauthorizedPolicy(); err != nil {
			cfg.RecentPredictionsOn401 = prev
			return err
		}
	case "templates_db":
		cfg.TemplatesDB = value
	default:
		return fmt.Errorf("unknown setting")
	}
	return nil
}

// Redacted returns a copy with the secrets replaced, for displaying.
func (cfg Config) Redacted() Config {
	for _, s := range []*secret.String{&cfg.ClientSecret, &cfg.AccessToken, &cfg.RefreshToken} {
		if s.Get() != "" {
			*s = secret.NewString(redactedValue)
		}
	}
	cfg.OAuthListenPorts = append([]uint16{}, cfg.OAuthListenPorts...)
	return cfg
}
