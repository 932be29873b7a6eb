package config

import (
	"fmt"
	"strconv"
	"strings"
)

type Config interface {
	EnvConfig
	OAuthConfig
	SecurityConfig
	AdminConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetDataFolder() string
	GetBaseURL() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetLogLevel() string
	GetEnv() string
}

// AdminConfig exposes the static admin allow-list.
type AdminConfig interface {
	GetAdminProviderIDs() []int64
}

type mainConfig struct {
	EnvVars
	OAuth
	Security
	Admins
}

// New reads the environment once. Values that must not change while the
// process runs (allow-list, cookie signing key) are captured here.
func New() (Config, error) {
	ids, err := parseProviderIDs(GetEnv(adminIDsVar, ""))
	if err != nil {
		return nil, fmt.Errorf("[config New] %s: %w", adminIDsVar, err)
	}
	key, err := loadSigningKey()
	if err != nil {
		return nil, fmt.Errorf("[config New] %w", err)
	}
	return mainConfig{
		Security: Security{signingKey: key},
		Admins:   Admins{ids: ids},
	}, nil
}

const adminIDsVar = "ADMIN_GITHUB_IDS"

type Admins struct {
	ids []int64
}

var _ AdminConfig = Admins{}

// GetAdminProviderIDs returns a copy so callers cannot mutate the loaded list.
func (a Admins) GetAdminProviderIDs() []int64 {
	out := make([]int64, len(a.ids))
	copy(out, a.ids)
	return out
}

func parseProviderIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid provider user id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
