package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medtrust/console/internal/config"
	"github.com/medtrust/console/internal/domain/access"
	"github.com/medtrust/console/internal/domain/auditlog"
	"github.com/medtrust/console/internal/domain/identity"
	"github.com/medtrust/console/internal/domain/network"
	"github.com/medtrust/console/internal/domain/patient"
	"github.com/medtrust/console/internal/domain/trust"
	"github.com/medtrust/console/internal/platform/api"
	"github.com/medtrust/console/internal/platform/notify"
	"github.com/medtrust/console/internal/platform/poll"
	"github.com/medtrust/console/internal/platform/session"
	"github.com/medtrust/console/internal/sandbox"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "medtrust",
		Short: "MedTrust hospital records console",
	}

	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(requestCmd())
	rootCmd.AddCommand(logsCmd())
	rootCmd.AddCommand(patientsCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(sandboxCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app wires the client stack for one command invocation.
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	client   *api.Client
	session  *session.Provider
	network  *network.Service
	trust    *trust.Service
	logs     *auditlog.Service
	patients *patient.Service
	identity *identity.Service
	notifier *notify.Center
	orch     *access.Orchestrator
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}

	// The configured credential resolves once into the session provider;
	// the 401 interceptor clears it so every later call in this invocation
	// fails fast instead of retrying a rejected token.
	provider := session.NewProvider()
	token, err := resolveToken(cfg)
	if err != nil {
		logger.Warn().Err(err).Msg("token unavailable, requests go out unauthenticated")
		token = ""
	}
	if token != "" && session.Expired(token, time.Now()) {
		logger.Warn().Msg("configured token is already expired")
	}
	provider.Set(token)

	notifier := notify.NewCenter(logger)
	client := api.New(cfg.BaseURL(), logger,
		api.WithTokenSource(provider),
		api.WithTimeout(cfg.HTTPTimeout),
		api.WithUnauthorizedHook(func() {
			provider.Clear()
			notifier.Notify(notify.LevelError, "Session expired, please log in again")
		}),
	)

	a := &app{
		cfg:      cfg,
		log:      logger,
		client:   client,
		session:  provider,
		network:  network.NewService(client, logger),
		trust:    trust.NewService(client, cfg.ActorName, logger),
		logs:     auditlog.NewService(client, feedForRole(cfg.ActorRole), cfg.ActorName, logger),
		patients: patient.NewService(client, logger),
		identity: identity.NewService(client, logger),
		notifier: notifier,
	}
	a.orch = access.NewOrchestrator(access.Config{
		ActorName: cfg.ActorName,
		ActorRole: strings.ToLower(cfg.ActorRole),
		Gateway:   access.NewAPIGateway(client),
		Trust:     a.trust,
		Logs:      a.logs,
		Network:   a.network,
		Notifier:  notifier,
		Logger:    logger,
	})
	return a, nil
}

// resolveToken reads the configured credential. A file-backed token is
// read fresh here; long-lived commands re-read it on their poll cycle.
func resolveToken(cfg *config.Config) (string, error) {
	if cfg.TokenFile != "" {
		return session.FileSource{Path: cfg.TokenFile}.Token(context.Background())
	}
	return cfg.Token, nil
}

func feedForRole(role string) auditlog.Feed {
	switch strings.ToLower(role) {
	case "admin":
		return auditlog.FeedAdmin
	case "nurse":
		return auditlog.FeedNurse
	case "patient":
		return auditlog.FeedPatient
	default:
		return auditlog.FeedDoctor
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show network position and trust score",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			st, err := a.network.Refresh(ctx)
			if err != nil {
				return err
			}
			score, err := a.trust.Refresh(ctx)
			if err != nil {
				return err
			}

			position := "outside hospital network"
			if st.InsideNetwork {
				position = "inside hospital network"
			}
			fmt.Printf("Actor:    %s (%s)\n", a.cfg.ActorName, a.cfg.ActorRole)
			fmt.Printf("Network:  %s (%s)\n", st.IPAddress, position)
			fmt.Printf("Trust:    %d\n", score)
			return nil
		},
	}
}

func loginCmd() *cobra.Command {
	var name, role, email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and verify the emailed OTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			if name == "" {
				name = a.cfg.ActorName
			}
			if role == "" {
				role = a.cfg.ActorRole
			}

			res, err := a.identity.Login(ctx, name, role, email)
			if err != nil {
				return err
			}
			fmt.Println(res.Message)

			reader := bufio.NewReader(os.Stdin)
			for {
				fmt.Print("OTP (or 'resend'): ")
				line, err := reader.ReadString('\n')
				if err != nil {
					return err
				}
				line = strings.TrimSpace(line)
				if strings.EqualFold(line, "resend") {
					if err := a.identity.ResendOTP(ctx, res.SessionID); err != nil {
						fmt.Println("resend failed:", err)
					}
					continue
				}
				ok, err := a.identity.VerifyOTP(ctx, res.SessionID, line)
				if err != nil {
					return err
				}
				if ok {
					break
				}
				fmt.Println("Incorrect OTP, try again.")
			}

			a.orch.LogLogin(ctx)
			fmt.Printf("Signed in as %s (%s). Session: %s\n", name, role, res.SessionID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name (defaults to ACTOR_NAME)")
	cmd.Flags().StringVar(&role, "role", "", "role (defaults to ACTOR_ROLE)")
	cmd.Flags().StringVar(&email, "email", "", "email address the OTP is sent to")
	cmd.MarkFlagRequired("email")
	return cmd
}

func requestCmd() *cobra.Command {
	var justification string
	var skipPrecheck bool
	cmd := &cobra.Command{
		Use:   "request <normal|restricted|emergency|temporary> <patient>",
		Short: "Request access to a patient record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			tier, err := access.ParseTier(args[0])
			if err != nil {
				return err
			}

			if _, err := a.network.Refresh(ctx); err != nil {
				a.log.Warn().Err(err).Msg("network check unavailable")
			}
			if _, err := a.trust.Refresh(ctx); err != nil {
				a.log.Debug().Err(err).Msg("trust fetch failed")
			}

			a.orch.SelectPatient(args[1])

			if err := a.orch.Begin(tier); err != nil {
				if err != access.ErrJustificationRequired {
					return err
				}
				if justification == "" {
					justification, err = promptJustification(a, ctx, skipPrecheck)
					if err != nil {
						return err
					}
				}
			}

			resp, err := a.orch.Submit(ctx, tier, justification)
			if err != nil {
				return err
			}

			for _, n := range a.notifier.Recent() {
				fmt.Printf("[%s] %s\n", n.Level, n.Message)
			}
			if resp.Success {
				printPatientData(resp.PatientData)
				if resp.PDFLink != "" {
					fmt.Println("Record PDF:", patient.ResolvePDFLink(a.client.BaseURL(), resp.PDFLink))
				}
			}
			fmt.Printf("Trust score: %d\n", a.trust.Score())
			return nil
		},
	}
	cmd.Flags().StringVarP(&justification, "justification", "j", "", "reason for access")
	cmd.Flags().BoolVar(&skipPrecheck, "no-precheck", false, "skip the justification advisory")
	return cmd
}

// promptJustification collects a justification interactively, showing the
// advisory for each candidate before accepting it.
func promptJustification(a *app, ctx context.Context, skipPrecheck bool) (string, error) {
	reader := bufio.NewReader(os.Stdin)
	prechecker := access.NewPrechecker(access.NewAPIGateway(a.client), a.cfg.PrecheckDebounce, a.log)
	defer prechecker.Stop()

	for {
		fmt.Print("Justification: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return "", err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			fmt.Println("A justification is required for this tier.")
			continue
		}
		if !skipPrecheck {
			done := make(chan access.Advisory, 1)
			prechecker.Observe(ctx, line, func(adv access.Advisory) { done <- adv })
			select {
			case adv := <-done:
				if adv.Message != "" {
					fmt.Printf("Advisory (%s): %s\n", adv.Status, adv.Message)
				}
			case <-time.After(a.cfg.PrecheckDebounce + a.cfg.HTTPTimeout):
			}
		}
		return line, nil
	}
}

func printPatientData(data map[string]any) {
	if len(data) == 0 {
		return
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %-10s %v\n", k+":", data[k])
	}
}

func logsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Browse and manage the audit log",
	}

	var from, to string
	var page int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent audit entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			entries, err := a.logs.Fetch(cmd.Context(), true)
			if err != nil {
				return err
			}
			entries = auditlog.FilterByDateRange(entries, from, to)
			total := auditlog.TotalPages(len(entries), a.cfg.LogPageSize)
			printEntries(auditlog.Paginate(entries, page, a.cfg.LogPageSize))
			fmt.Printf("page %d of %d (%d entries)\n", page, total, len(entries))
			return nil
		},
	}
	listCmd.Flags().StringVar(&from, "from", "", "start date (YYYY-MM-DD)")
	listCmd.Flags().StringVar(&to, "to", "", "end date (YYYY-MM-DD)")
	listCmd.Flags().IntVar(&page, "page", 1, "page number")

	flaggedCmd := &cobra.Command{
		Use:   "flagged",
		Short: "Show unresolved flagged entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			entries, err := a.logs.Fetch(cmd.Context(), true)
			if err != nil {
				return err
			}
			printEntries(auditlog.FlaggedView(entries))
			return nil
		},
	}

	var format, out string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export the audit log as CSV or JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			entries, err := a.logs.Fetch(cmd.Context(), true)
			if err != nil {
				return err
			}
			entries = auditlog.FilterByDateRange(entries, from, to)

			dst := os.Stdout
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				dst = f
			}
			switch strings.ToLower(format) {
			case "csv":
				return auditlog.ExportCSV(dst, entries)
			case "json":
				return auditlog.ExportJSON(dst, entries, time.Now())
			default:
				return fmt.Errorf("unknown export format %q", format)
			}
		},
	}
	exportCmd.Flags().StringVar(&format, "format", "csv", "csv or json")
	exportCmd.Flags().StringVar(&out, "out", "-", "output file, - for stdout")
	exportCmd.Flags().StringVar(&from, "from", "", "start date (YYYY-MM-DD)")
	exportCmd.Flags().StringVar(&to, "to", "", "end date (YYYY-MM-DD)")

	var status string
	resolveCmd := &cobra.Command{
		Use:   "resolve <log-id>",
		Short: "Mark a flagged entry resolved or dismissed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := a.logs.Resolve(cmd.Context(), args[0], status); err != nil {
				return err
			}
			fmt.Printf("log %s marked %s\n", args[0], status)
			return nil
		},
	}
	resolveCmd.Flags().StringVar(&status, "status", auditlog.StatusResolved, "Resolved or Dismissed")

	cmd.AddCommand(listCmd, flaggedCmd, exportCmd, resolveCmd)
	return cmd
}

func printEntries(entries []auditlog.Entry) {
	if len(entries) == 0 {
		fmt.Println("no entries")
		return
	}
	for _, e := range entries {
		fmt.Printf("%-20s  %-22s  %-8s  %-20s  %-18s  %s\n",
			e.Timestamp, e.ActorName, e.ActorRole, e.PatientName, e.Action, e.Status)
		if e.ID != "" {
			fmt.Printf("%22sid=%s\n", "", e.ID)
		}
	}
}

func patientsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patients",
		Short: "Browse and update patient records",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List patients",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			list, err := a.patients.List(cmd.Context(), true)
			if err != nil {
				return err
			}
			for _, p := range list {
				fmt.Printf("%-24s %3d  %-8s %s\n", p.Name, p.Age, p.Gender, p.Diagnosis)
			}
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Show one patient record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			p, err := a.patients.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Name:      %s\n", p.Name)
			fmt.Printf("Age:       %d\n", p.Age)
			fmt.Printf("Gender:    %s\n", p.Gender)
			fmt.Printf("Diagnosis: %s\n", p.Diagnosis)
			fmt.Printf("Treatment: %s\n", p.Treatment)
			if p.Notes != "" {
				fmt.Printf("Notes:     %s\n", p.Notes)
			}
			return nil
		},
	}

	var diagnosis, treatment, notes string
	updateCmd := &cobra.Command{
		Use:   "update <name>",
		Short: "Update a patient record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			p, err := a.patients.Update(cmd.Context(), args[0], a.cfg.ActorName, patient.RecordUpdate{
				Diagnosis: diagnosis,
				Treatment: treatment,
				Notes:     notes,
			})
			if err != nil {
				return err
			}
			fmt.Printf("updated %s\n", p.Name)
			return nil
		},
	}
	updateCmd.Flags().StringVar(&diagnosis, "diagnosis", "", "diagnosis (required)")
	updateCmd.Flags().StringVar(&treatment, "treatment", "", "treatment plan")
	updateCmd.Flags().StringVar(&notes, "notes", "", "clinical notes")
	updateCmd.MarkFlagRequired("diagnosis")

	var newPatient patient.Patient
	addCmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Register a new patient",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			newPatient.Name = args[0]
			p, err := a.patients.Add(cmd.Context(), newPatient)
			if err != nil {
				return err
			}
			fmt.Printf("added %s\n", p.Name)
			return nil
		},
	}
	addCmd.Flags().StringVar(&newPatient.Email, "email", "", "contact email")
	addCmd.Flags().IntVar(&newPatient.Age, "age", 0, "age in years")
	addCmd.Flags().StringVar(&newPatient.Gender, "gender", "", "gender")
	addCmd.Flags().StringVar(&newPatient.Diagnosis, "diagnosis", "", "diagnosis (required)")
	addCmd.Flags().StringVar(&newPatient.Treatment, "treatment", "", "treatment plan")
	addCmd.Flags().StringVar(&newPatient.Notes, "notes", "", "clinical notes")
	addCmd.MarkFlagRequired("diagnosis")

	cmd.AddCommand(listCmd, showCmd, updateCmd, addCmd)
	return cmd
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Poll trust score and audit activity until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if _, err := a.network.Refresh(ctx); err != nil {
				a.log.Warn().Err(err).Msg("network check unavailable")
			}

			stopTrust := a.trust.Watch(ctx, a.cfg.TrustPollInterval)
			defer stopTrust()

			// File-backed tokens rotate on disk; pick up the new value on
			// the same cadence. A cleared (forced-logout) session stays
			// closed regardless.
			if a.cfg.TokenFile != "" {
				stopToken := poll.Start(ctx, a.cfg.TrustPollInterval, func(ctx context.Context) {
					tok, err := session.FileSource{Path: a.cfg.TokenFile}.Token(ctx)
					if err != nil {
						a.log.Debug().Err(err).Msg("token re-read failed")
						return
					}
					a.session.Set(tok)
				})
				defer stopToken()
			}

			stopLogs := poll.Start(ctx, a.cfg.ActivityInterval, func(ctx context.Context) {
				if err := a.logs.Refresh(ctx); err != nil {
					a.log.Debug().Err(err).Msg("activity refresh failed")
				} else {
					a.log.Info().Int("entries", len(a.logs.Entries())).Msg("audit feed refreshed")
				}
			})
			defer stopLogs()

			a.log.Info().
				Dur("trust_interval", a.cfg.TrustPollInterval).
				Dur("activity_interval", a.cfg.ActivityInterval).
				Msg("watching")
			<-ctx.Done()
			return nil
		},
	}
}

func sandboxCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sandbox",
		Short: "Run the in-memory sandbox backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

			srv := sandbox.New(logger)
			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start(cfg.SandboxAddr) }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}
