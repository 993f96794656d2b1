package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mantonx/streamgate/internal/config"
	"github.com/mantonx/streamgate/internal/interceptor"
	"github.com/mantonx/streamgate/internal/logger"
	streamcore "github.com/mantonx/streamgate/internal/modules/streammodule/core"
	"github.com/mantonx/streamgate/internal/types"
	"github.com/mantonx/streamgate/internal/utils"
	"github.com/spf13/cobra"
)

const credentialWait = 5 * time.Second

func newFetchCmd() *cobra.Command {
	var (
		gateway    string
		byteRange  string
		outputPath string
	)

	cmd := &cobra.Command{
		Use:   "fetch <asset>",
		Short: "Resolve an asset and download it the way a player would",
		Long: `Resolves the asset through the gateway, then downloads the result.
MP4 sources are read through the streaming proxy. HLS manifests are read
directly from the origin using the credential pushed over the gateway's
credential channel, or through the streaming proxy when that channel is
unavailable.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rangeHeader, err := normalizeRange(byteRange)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if outputPath != "" && outputPath != "-" {
				f, err := os.Create(outputPath)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}

			return runFetch(cmd.Context(), gatewayURL(gateway), args[0], rangeHeader, out, cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVar(&gateway, "gateway", "", "gateway base URL (default server.public_url)")
	cmd.Flags().StringVarP(&byteRange, "range", "r", "", `byte range, e.g. "0-1023" or "bytes=-500"`)
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "write the body to a file instead of stdout")
	return cmd
}

func normalizeRange(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}
	if !strings.HasPrefix(raw, "bytes=") {
		raw = "bytes=" + raw
	}
	if _, err := utils.ParseRangeHeader(raw); err != nil {
		return "", err
	}
	return raw, nil
}

func runFetch(ctx context.Context, gateway, asset, rangeHeader string, out, status io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	src, err := resolveRemote(ctx, gateway, asset)
	if err != nil {
		return err
	}
	fmt.Fprintf(status, "%s source: %s\n", src.Kind, src.URL)

	client := &http.Client{}
	if src.Kind == types.SourceKindHLS {
		if err := attachCredential(ctx, client, gateway); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Direct origin playback is unavailable; read the manifest
			// through the streaming proxy instead.
			logger.Named("fetch").Warn("direct origin access unavailable, using streaming proxy", "error", err)
			src.URL = streamcore.WrapURL(gateway, src.URL)
			fmt.Fprintf(status, "falling back to proxy: %s\n", src.URL)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return err
	}
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("fetch returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	n, err := io.Copy(out, resp.Body)
	fmt.Fprintf(status, "%d %s, %d bytes\n", resp.StatusCode, resp.Header.Get("Content-Type"), n)
	return err
}

// attachCredential subscribes to the gateway credential channel and installs
// the auth injector on client once the first key arrives. The subscription
// lives until ctx ends.
func attachCredential(ctx context.Context, client *http.Client, gateway string) error {
	cfg := config.Get()
	injector, err := interceptor.NewAuthInjector(cfg.Origin.BaseURL, cfg.Origin.APIKeyHeader)
	if err != nil {
		return err
	}

	wsURL := "ws" + strings.TrimPrefix(gateway, "http") + "/api/credentials/ws"

	ready := make(chan struct{})
	var once sync.Once
	listenErr := make(chan error, 1)
	go func() {
		listenErr <- interceptor.Listen(ctx, wsURL, injector, interceptor.ListenOptions{
			Logger:   logger.Named("interceptor"),
			OnUpdate: func(interceptor.Message) { once.Do(func() { close(ready) }) },
		})
	}()

	select {
	case <-ready:
	case err := <-listenErr:
		if err == nil {
			err = errors.New("credential channel closed before a key arrived")
		}
		return err
	case <-time.After(credentialWait):
		return errors.New("timed out waiting for origin credential")
	case <-ctx.Done():
		return ctx.Err()
	}

	if !interceptor.Install(client, injector) {
		return errors.New("gateway sent an empty origin credential")
	}
	return nil
}
