package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/streamgate/internal/config"
	"github.com/mantonx/streamgate/internal/server"
	"github.com/mantonx/streamgate/internal/services"
	"github.com/mantonx/streamgate/internal/types"
	"github.com/spf13/cobra"
)

const requestTimeout = 30 * time.Second

func newResolveCmd() *cobra.Command {
	var (
		gateway string
		local   bool
	)

	cmd := &cobra.Command{
		Use:   "resolve <asset>",
		Short: "Resolve an asset path to an HLS or MP4 source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			var (
				src types.VideoSource
				err error
			)
			if local {
				src, err = resolveLocal(ctx, args[0])
			} else {
				src, err = resolveRemote(ctx, gatewayURL(gateway), args[0])
			}
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(src)
		},
	}
	cmd.Flags().StringVar(&gateway, "gateway", "", "gateway base URL (default server.public_url)")
	cmd.Flags().BoolVar(&local, "local", false, "resolve in-process against the origin instead of asking a running gateway")
	return cmd
}

func gatewayURL(flag string) string {
	if flag != "" {
		return strings.TrimRight(flag, "/")
	}
	return config.Get().Server.PublicURL
}

// resolveLocal loads the modules without starting a listener.
func resolveLocal(ctx context.Context, asset string) (types.VideoSource, error) {
	srv, err := server.New(server.Options{Config: config.Get(), Logger: hclog.NewNullLogger()})
	if err != nil {
		return types.VideoSource{}, err
	}
	defer srv.Shutdown(context.Background())

	sources, err := services.Get[services.SourceService](srv.Services(), services.SourceServiceName)
	if err != nil {
		return types.VideoSource{}, err
	}
	return sources.Resolve(ctx, types.AssetPath(asset))
}

func resolveRemote(ctx context.Context, gateway, asset string) (types.VideoSource, error) {
	endpoint := gateway + "/api/sources/resolve?path=" + url.QueryEscape(asset)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return types.VideoSource{}, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return types.VideoSource{}, fmt.Errorf("resolve %s: %w", asset, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return types.VideoSource{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return types.VideoSource{}, fmt.Errorf("gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var src types.VideoSource
	if err := json.Unmarshal(body, &src); err != nil {
		return types.VideoSource{}, fmt.Errorf("decode resolution: %w", err)
	}
	return src, nil
}
