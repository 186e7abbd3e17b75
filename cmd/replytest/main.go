package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/wolfman30/dialogflow-bridge/cmd/mainconfig"
	"github.com/wolfman30/dialogflow-bridge/internal/app/bootstrap"
	"github.com/wolfman30/dialogflow-bridge/internal/assistant"
	appconfig "github.com/wolfman30/dialogflow-bridge/internal/config"
	"github.com/wolfman30/dialogflow-bridge/internal/gateway"
	"github.com/wolfman30/dialogflow-bridge/internal/reply"
	"github.com/wolfman30/dialogflow-bridge/internal/session"
	"github.com/wolfman30/dialogflow-bridge/pkg/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		from     string
		format   string
		provider string
		baseURL  string
		timeout  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "replytest [utterance]",
		Short: "Send one utterance to the configured assistant and print the rendered reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := appconfig.Load()
			if provider != "" {
				cfg.AIProvider = strings.ToLower(provider)
				cfg.AIFallbackProvider = ""
			}
			if format != "" {
				cfg.ReplyFormat = strings.ToLower(format)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			logger := logging.New("error")
			var awsCfg aws.Config
			if cfg.UsesAWS() {
				loaded, err := mainconfig.LoadAWSConfig(ctx, cfg)
				if err != nil {
					return fmt.Errorf("load aws config: %w", err)
				}
				awsCfg = loaded
			}
			fetcher, closer, err := bootstrap.BuildFetcher(ctx, cfg, awsCfg, nil, logger)
			if err != nil {
				return err
			}
			defer closer()

			wire, err := gateway.FormatByName(cfg.ReplyFormat)
			if err != nil {
				return err
			}
			renderer := gateway.NewRenderer(gateway.ResolveButtonMode(cfg.ButtonMode, wire))
			return runExchange(ctx, cmd.OutOrStdout(), exchange{
				fetcher:      fetcher,
				renderer:     renderer,
				format:       wire,
				from:         from,
				utterance:    strings.Join(args, " "),
				languageCode: cfg.DialogflowLanguageCode,
				baseURL:      baseURL,
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&from, "from", "whatsapp:+15550000000", "correspondent id the session key is derived from")
	f.StringVar(&format, "format", "", "reply format override (twiml or whatsapp)")
	f.StringVar(&provider, "provider", "", "assistant provider override (dialogflow, gemini, bedrock)")
	f.StringVar(&baseURL, "base-url", "https://example.com/", "public origin used for media URLs")
	f.DurationVar(&timeout, "timeout", 30*time.Second, "overall deadline")
	return cmd
}

type exchange struct {
	fetcher      assistant.Fetcher
	renderer     gateway.Renderer
	format       gateway.Format
	from         string
	utterance    string
	languageCode string
	baseURL      string
}

// runExchange performs one webhook round trip without HTTP and prints each stage.
func runExchange(ctx context.Context, out io.Writer, ex exchange) error {
	sessionKey := session.DeriveKey(ex.from)
	fmt.Fprintf(out, "session key: %s\n", sessionKey)

	start := time.Now()
	raw, err := ex.fetcher.FetchReply(ctx, sessionKey, ex.utterance, ex.languageCode)
	fmt.Fprintf(out, "assistant:   %s (%v)\n", assistant.Outcome(err), time.Since(start).Round(time.Millisecond))
	if err != nil {
		return err
	}

	normalized, err := json.MarshalIndent(reply.Normalize(raw), "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "reply:\n%s\n", normalized)

	msg := ex.renderer.Render(reply.Normalize(raw), ex.baseURL)
	msg.To = ex.from
	body, err := ex.format.Encode(msg)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s (%s):\n%s\n", ex.format.Name(), msg.Kind(), body)
	return nil
}
