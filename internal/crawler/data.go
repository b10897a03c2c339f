package crawler

import (
	"encoding/json"
	"time"

	"github.com/rohmanhakim/lore-crawler/internal/config"
)

// CrawlConfig defines the behavior of one crawl job. It is snapshot
// into the job row at submission time so a job can be re-run with the
// configuration it was created under.
type CrawlConfig struct {
	MaxPages      int           `json:"max_pages"`
	MaxDepth      int           `json:"max_depth"`
	FollowLinks   bool          `json:"follow_links"`
	CrawlDelay    time.Duration `json:"crawl_delay"`
	RespectRobots bool          `json:"respect_robots"`
	SameHostOnly  bool          `json:"same_host_only"`
	AllowHosts    []string      `json:"allow_hosts,omitempty"`
	DenyHosts     []string      `json:"deny_hosts,omitempty"`
}

// ConfigFrom derives a job config from the application defaults.
func ConfigFrom(cfg config.Config) CrawlConfig {
	return CrawlConfig{
		MaxPages:      cfg.MaxPages(),
		MaxDepth:      cfg.MaxDepth(),
		FollowLinks:   cfg.FollowLinks(),
		CrawlDelay:    cfg.CrawlDelay(),
		RespectRobots: cfg.RespectRobots(),
		SameHostOnly:  cfg.SameHostOnly(),
	}
}

// ToJSON serializes the config for the job snapshot column.
func (c CrawlConfig) ToJSON() (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ConfigFromJSON deserializes a job snapshot back into a config.
func ConfigFromJSON(data string) (CrawlConfig, error) {
	var c CrawlConfig
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return CrawlConfig{}, err
	}
	return c, nil
}

// hostSet builds lookup sets for the allow/deny policy.
func hostSet(hosts []string) map[string]struct{} {
	set := make(map[string]struct{}, len(hosts))
	for _, h := range hosts {
		if h != "" {
			set[h] = struct{}{}
		}
	}
	return set
}

// consecutiveFailureLimit blacklists a host for the rest of the job
// after this many back-to-back failures.
const consecutiveFailureLimit = 20
