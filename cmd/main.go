// Package main provides the CLI entry point for the foodscan client.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/example/foodscan/internal/config"
	"github.com/example/foodscan/internal/history"
	"github.com/example/foodscan/internal/logger"
	"github.com/example/foodscan/internal/metrics"
	"github.com/example/foodscan/internal/profile"
	"github.com/example/foodscan/internal/scan"
	"github.com/example/foodscan/internal/session"
	"github.com/example/foodscan/internal/transport"
)

// Version information (populated at build time)
var (
	version = "dev"
)

// CLI flags
var (
	configPath  string
	serverURL   string
	email       string
	password    string
	firstName   string
	lastName    string
	allergyName string
	severity    string
	notes       string
	showVersion bool
)

func init() {
	flag.StringVar(&configPath, "config", "", "Path to the YAML configuration file")
	flag.StringVar(&configPath, "c", "", "Path to the YAML configuration file (shorthand)")
	flag.StringVar(&serverURL, "server", "", "Override the API base URL")

	flag.StringVar(&email, "email", "", "Account email (login/register)")
	flag.StringVar(&password, "password", "", "Account password (login/register)")
	flag.StringVar(&firstName, "first-name", "", "First name (register)")
	flag.StringVar(&lastName, "last-name", "", "Last name (register)")

	flag.StringVar(&allergyName, "name", "", "Allergy name (allergy-add/allergy-remove)")
	flag.StringVar(&severity, "severity", "mild", "Allergy severity: mild, moderate, severe (allergy-add)")
	flag.StringVar(&notes, "notes", "", "Allergy notes (allergy-add)")

	flag.BoolVar(&showVersion, "version", false, "Show version information")

	flag.Usage = printUsage
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `foodscan - Food Allergen Scanner Client

USAGE:
    foodscan [options] <command> [args]

COMMANDS:
    register              Create an account (-email, -password, -first-name, -last-name)
    login                 Log in (-email, -password)
    logout                Discard the stored session
    profile               Show the current user profile
    allergies             List the local allergy profile
    allergy-add           Add an allergy locally (-name, -severity, -notes)
    allergy-remove        Remove an allergy locally (-name)
    allergy-save          Persist the allergy profile to the server
    scan <image>          Analyze a food photo
    history               Show recent scans

OPTIONS:
    -config, -c <path>    Path to the YAML configuration file
    -server <url>         Override the API base URL
    -version              Show version information

ENVIRONMENT:
    FOODSCAN_API_URL      Overrides the API base URL
    FOODSCAN_ENV          "production" selects the production default URL
`)
}

func main() {
	flag.Parse()

	if showVersion {
		fmt.Printf("foodscan %s\n", version)
		return
	}

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(2)
	}

	if err := run(flag.Arg(0), flag.Args()[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// app wires the engine components for one CLI invocation.
type app struct {
	cfg       *config.Config
	log       *zap.Logger
	session   *session.Manager
	allergies *profile.Store
	scanner   *scan.Orchestrator
	history   *history.Cache
}

func run(command string, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if serverURL != "" {
		cfg.API.BaseURL = strings.TrimRight(serverURL, "/")
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	recorder := metrics.NewRecorder()
	if cfg.Metrics.Addr != "" {
		go serveMetrics(cfg.Metrics.Addr, recorder, log)
	}

	client, err := transport.New(cfg.API, nil, recorder)
	if err != nil {
		return err
	}
	store := session.NewFileStore(cfg.StateDir)
	sess := session.NewManager(client, store, log)
	client.SetTokenSource(sess)

	ctx := context.Background()
	if err := sess.Initialize(ctx); err != nil {
		// A rejected stored token demotes the session to unauthenticated;
		// the command below decides whether that matters.
		log.Debug("session hydration failed", zap.Error(err))
	}

	hist := history.New(client, log, cfg.History.PerPage)
	a := &app{
		cfg:       cfg,
		log:       log,
		session:   sess,
		allergies: profile.NewStore(client, sess, log),
		scanner:   scan.NewOrchestrator(client, sess, hist, log),
		history:   hist,
	}

	switch command {
	case "register":
		return a.register(ctx)
	case "login":
		return a.login(ctx)
	case "logout":
		a.session.Logout()
		fmt.Println("Logged out.")
		return nil
	case "profile":
		return a.showProfile()
	case "allergies":
		return a.listAllergies()
	case "allergy-add":
		return a.addAllergy()
	case "allergy-remove":
		return a.removeAllergy()
	case "allergy-save":
		return a.saveAllergies(ctx)
	case "scan":
		if len(args) < 1 {
			return errors.New("scan requires an image path")
		}
		return a.scan(ctx, args[0])
	case "history":
		return a.showHistory(ctx)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func serveMetrics(addr string, recorder *metrics.Recorder, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", recorder.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Warn("metrics endpoint stopped", zap.Error(err))
	}
}

func (a *app) register(ctx context.Context) error {
	if err := validateRegistration(email, password, firstName, lastName); err != nil {
		return err
	}
	err := a.session.Register(ctx, session.Registration{
		Email:     email,
		Password:  password,
		FirstName: firstName,
		LastName:  lastName,
	})
	if err != nil {
		return err
	}
	a.allergies.SyncFromSession()
	fmt.Println("Account created. Logged in as", email)
	return nil
}

func (a *app) login(ctx context.Context) error {
	if email == "" || password == "" {
		return errors.New("login requires -email and -password")
	}
	if err := a.session.Login(ctx, email, password); err != nil {
		return err
	}
	a.allergies.SyncFromSession()
	fmt.Println("Logged in as", email)
	return nil
}

func (a *app) showProfile() error {
	user := a.session.User()
	if user == nil {
		return errors.New("not logged in")
	}
	fmt.Printf("%s %s <%s>\n", user.Identity.FirstName, user.Identity.LastName, user.Identity.Email)
	fmt.Printf("Total scans: %d\n", user.TotalScans)
	if exp, ok := a.session.TokenExpiry(); ok {
		fmt.Printf("Session expires: %s\n", exp.Local().Format("2006-01-02 15:04"))
	}
	fmt.Printf("Allergies: %d\n", len(user.Allergies))
	for _, al := range user.Allergies {
		printAllergy(al)
	}
	return nil
}

func (a *app) listAllergies() error {
	list := a.allergies.List()
	if len(list) == 0 {
		fmt.Println("No allergies recorded.")
		return nil
	}
	for _, al := range list {
		printAllergy(al)
	}
	return nil
}

func (a *app) addAllergy() error {
	if allergyName == "" {
		return errors.New("allergy-add requires -name")
	}
	added := a.allergies.Add(session.Allergy{Name: allergyName, Severity: severity, Notes: notes})
	if !added {
		fmt.Println("Not added (duplicate name or invalid severity).")
		return nil
	}
	fmt.Println("Added. Run 'foodscan allergy-save' to persist.")
	return nil
}

func (a *app) removeAllergy() error {
	if allergyName == "" {
		return errors.New("allergy-remove requires -name")
	}
	if !a.allergies.Remove(strings.ToLower(strings.TrimSpace(allergyName))) {
		fmt.Println("No such allergy.")
		return nil
	}
	fmt.Println("Removed. Run 'foodscan allergy-save' to persist.")
	return nil
}

func (a *app) saveAllergies(ctx context.Context) error {
	if !a.session.Authenticated() {
		return errors.New("not logged in")
	}
	if err := a.allergies.Persist(ctx); err != nil {
		return err
	}
	fmt.Println("Allergy profile saved.")
	return nil
}

func (a *app) scan(ctx context.Context, path string) error {
	if !a.session.Authenticated() {
		return errors.New("not logged in")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	img := scan.Image{
		Name:        filepath.Base(path),
		ContentType: detectContentType(path, data),
		Data:        data,
	}
	if err := a.scanner.SelectImage(img); err != nil {
		return err
	}
	fmt.Println("Analyzing", img.Name, "...")
	if err := a.scanner.Analyze(ctx); err != nil {
		return err
	}
	printResult(a.scanner.Result(), a.scanner.Nutrition())
	return nil
}

func (a *app) showHistory(ctx context.Context) error {
	if !a.session.Authenticated() {
		return errors.New("not logged in")
	}
	if err := a.history.Refresh(ctx); err != nil {
		return err
	}
	entries := a.history.Entries()
	if len(entries) == 0 {
		fmt.Println("No scans yet.")
		return nil
	}
	for _, e := range entries {
		verdict := "SAFE"
		if !e.IsSafe {
			verdict = fmt.Sprintf("UNSAFE (%d warnings)", len(e.Warnings))
		}
		fmt.Printf("#%d  %s  %s  %s\n", e.ID, e.CreatedAt, verdict, strings.Join(e.Ingredients, ", "))
	}
	return nil
}

// validateRegistration enforces the form-level constraints before the
// request is issued; the session manager does not re-validate.
func validateRegistration(email, password, firstName, lastName string) error {
	if email == "" {
		return errors.New("register requires -email")
	}
	if firstName == "" || lastName == "" {
		return errors.New("register requires -first-name and -last-name")
	}
	if len(password) < 6 {
		return errors.New("password must be at least 6 characters")
	}
	return nil
}

// detectContentType resolves the image MIME type from the file extension,
// sniffing the content when the extension is unknown.
func detectContentType(path string, data []byte) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}

func printAllergy(al session.Allergy) {
	line := fmt.Sprintf("  - %s (%s)", al.Name, al.Severity)
	if al.Notes != "" {
		line += ": " + al.Notes
	}
	fmt.Println(line)
}

func printResult(res *scan.Result, nut *scan.Nutrition) {
	if res == nil {
		return
	}
	if res.IsSafe {
		fmt.Println("Result: SAFE to eat")
	} else {
		fmt.Println("Result: NOT SAFE, allergen warnings:")
		for _, w := range res.AllergenWarnings {
			fmt.Printf("  ! %s in %s (%s, %.0f%% confidence)\n", w.Allergen, w.Ingredient, w.Severity, w.Confidence*100)
		}
	}
	if len(res.Ingredients) > 0 {
		fmt.Println("Detected ingredients:")
		for _, ing := range res.Ingredients {
			fmt.Printf("  - %s (%.0f%%)\n", ing.Name, ing.Confidence*100)
		}
	}
	if res.ConfidenceScore != nil {
		fmt.Printf("Overall confidence: %.0f%%\n", *res.ConfidenceScore*100)
	}
	if nut != nil && nut.TotalEstimated != nil {
		t := nut.TotalEstimated
		fmt.Printf("Estimated nutrition: %.0f kcal, %.1fg protein, %.1fg carbs, %.1fg fat, %.1fg fiber\n",
			t.Calories, t.Protein, t.Carbs, t.Fat, t.Fiber)
	}
}
