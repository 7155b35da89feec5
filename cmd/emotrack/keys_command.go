package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

type keyPool struct {
	label string
	count int
	hint  string
}

// keys reports pool sizes only; key material is never printed.
func newKeysCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "Show how many API keys each service pool holds",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			pools := []keyPool{
				{"Inference (Hume)", len(cfg.Inference.APIKeys), "set inference.api_keys or HUME_API_KEY_1..10"},
				{"Generation (Gemini)", len(cfg.Generation.APIKeys), "set generation.api_keys or GEMINI_API_KEY_1..3"},
			}
			if cfg.Server.ProxyEnabled {
				pools = append(pools, keyPool{"Analysis proxy", len(cfg.Server.ProxyAPIKeys), "set server.proxy_api_keys"})
			}

			fmt.Fprintln(out, "API key pools:")
			for _, pool := range pools {
				if pool.count == 0 {
					fmt.Fprintln(out, renderStatusLine(pool.label, statusError, "no keys ("+pool.hint+")", colorize))
					continue
				}
				kind := statusOK
				if pool.count == 1 {
					kind = statusWarn
				}
				fmt.Fprintln(out, renderStatusLine(pool.label, kind, strconv.Itoa(pool.count)+" configured", colorize))
			}
			return nil
		},
	}
}
