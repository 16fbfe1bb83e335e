package main

import (
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"mila/internal/apiclient"
	"mila/internal/config"
)

type commandContext struct {
	apiFlag    *string
	tokenFlag  *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(apiFlag, tokenFlag, configFlag *string) *commandContext {
	return &commandContext{
		apiFlag:    apiFlag,
		tokenFlag:  tokenFlag,
		configFlag: configFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// client builds an API client from flags, falling back to the configured
// bind address.
func (c *commandContext) client() (*apiclient.Client, error) {
	base := ""
	token := ""
	if c.apiFlag != nil {
		base = strings.TrimSpace(*c.apiFlag)
	}
	if c.tokenFlag != nil {
		token = strings.TrimSpace(*c.tokenFlag)
	}
	if base != "" {
		return apiclient.New(base, token), nil
	}

	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if token != "" {
		bind := strings.TrimSpace(cfg.Paths.APIBind)
		if strings.HasPrefix(bind, ":") {
			bind = "127.0.0.1" + bind
		}
		return apiclient.New("http://"+bind, token), nil
	}
	return apiclient.NewConfiguredClient(cfg), nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
