package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"voicepay/internal/catalog"
	"voicepay/internal/config"
	"voicepay/internal/dialogue"
	"voicepay/internal/domain"
	"voicepay/internal/vault"
)

var (
	chatApps         []string
	chatFailPayments bool
	chatVerbose      bool
)

func init() {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the assistant in this terminal",
		Long:  "Runs the dialogue engine in-process. Each line you type is one utterance; payment hand-offs are printed instead of opening an app.",
		Args:  cobra.NoArgs,
		RunE:  runChat,
	}
	cmd.Flags().StringSliceVar(&chatApps, "apps", []string{"phonepe", "paytm"}, "Installed payment apps (names or package ids)")
	cmd.Flags().BoolVar(&chatFailPayments, "fail-payments", false, "Make every payment hand-off fail")
	cmd.Flags().BoolVarP(&chatVerbose, "verbose", "v", false, "Log engine activity to stderr")
	RootCmd.AddCommand(cmd)
}

// printingPayments stands in for a phone: it prints the deep link it would open.
type printingPayments struct {
	out  io.Writer
	fail bool
}

func (p printingPayments) InitiatePayment(_ context.Context, _ string, req domain.PaymentRequest) error {
	if p.fail {
		return errors.New("simulated payment app failure")
	}
	fmt.Fprintf(p.out, "  [device] opening %s with %s\n", req.AppID, domain.BuildUPIURI(req))
	return nil
}

func runChat(cmd *cobra.Command, _ []string) error {
	cfg := config.LoadCLIConfig()
	out := cmd.OutOrStdout()

	level := slog.LevelWarn
	if chatVerbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cat, err := catalog.Load(cfg.AppCatalogPath)
	if err != nil {
		return err
	}
	discovery, unknown := catalog.NewStaticDiscovery(cat, chatApps)
	for _, name := range unknown {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %q is not a known payment app\n", name)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	store := vault.New(vault.Config{}, logger)
	go store.Run(ctx)

	engine := dialogue.New(dialogue.Config{DefaultHandle: cfg.DefaultVPA}, dialogue.Deps{
		Vault:     store,
		Catalog:   cat,
		Discovery: discovery,
		Payments:  printingPayments{out: out, fail: chatFailPayments},
	}, logger)

	sessionID := uuid.NewString()
	defer engine.EndSession(sessionID)
	fmt.Fprintln(out, "Type a request (\"help\" for examples, \"exit\" to quit).")

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			return nil
		}
		reply := engine.HandleTurn(ctx, domain.Turn{SessionID: sessionID, DeviceID: "local", Text: line})
		fmt.Fprintln(out, reply)
	}
}
